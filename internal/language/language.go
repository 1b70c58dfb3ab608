package language

import "strings"

type entry struct {
	code2   string   // ISO 639-1
	code3   []string // ISO 639-2 forms, bibliographic first when they differ
	display string
	words   []string
}

// Course sites publish subtitles in these languages.
var languages = []entry{
	{"en", []string{"eng"}, "English", []string{"english"}},
	{"es", []string{"spa"}, "Spanish", []string{"spanish", "español", "espanol"}},
	{"pt", []string{"por"}, "Portuguese", []string{"portuguese", "português", "portugues"}},
	{"fr", []string{"fre", "fra"}, "French", []string{"french", "français", "francais"}},
	{"de", []string{"ger", "deu"}, "German", []string{"german", "deutsch"}},
	{"it", []string{"ita"}, "Italian", []string{"italian", "italiano"}},
	{"nl", []string{"dut", "nld"}, "Dutch", []string{"dutch", "nederlands"}},
	{"pl", []string{"pol"}, "Polish", []string{"polish", "polski"}},
	{"ca", []string{"cat"}, "Catalan", []string{"catalan", "català"}},
	{"ja", []string{"jpn"}, "Japanese", []string{"japanese"}},
	{"zh", []string{"chi", "zho"}, "Chinese", []string{"chinese"}},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.code2] = e
		for _, code := range e.code3 {
			m[code] = e
		}
		for _, word := range e.words {
			m[word] = e
		}
	}
	return m
}()

func lookup(code string) *entry {
	return index[strings.ToLower(strings.TrimSpace(code))]
}

// ToISO2 converts a recognized language code or name to ISO 639-1.
// Unrecognized two-letter codes pass through lowercased; anything else
// yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns the English name of a recognized language, or the
// uppercased code otherwise.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
