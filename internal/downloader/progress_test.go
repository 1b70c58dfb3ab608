package downloader

import "testing"

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		track   string
		percent float64
	}{
		{
			name:    "video",
			line:    "Vid 1920x1080 | 4012 Kbps | 25.00fps ━━━━━━━ 120/540 22.22% 30.02MB/120.00MB 2.50MBps 00:00:30",
			ok:      true,
			track:   "Vid 1920x1080",
			percent: 22.22,
		},
		{
			name:    "audio",
			line:    "  Aud en | 128 Kbps ━━━━━━ 540/540 100.00% 8.00MB/8.00MB 0.00Bps 00:00:00",
			ok:      true,
			track:   "Aud en",
			percent: 100,
		},
		{
			name:    "subtitle",
			line:    "Sub eng | WEBVTT 3%",
			ok:      true,
			track:   "Sub eng",
			percent: 3,
		},
		{name: "log line", line: "12:00:01.123 INFO : Loading URL", ok: false},
		{name: "no percent", line: "Vid 1920x1080 | 4012 Kbps", ok: false},
		{name: "empty", line: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, ok := ParseProgress(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if update.Track != tt.track || update.Percent != tt.percent {
				t.Fatalf("got %+v, want track=%q percent=%v", update, tt.track, tt.percent)
			}
		})
	}
}

func TestScanLinesOrCarriageReturns(t *testing.T) {
	data := []byte("one\rtwo\nthree")
	var tokens []string
	for len(data) > 0 {
		advance, token, err := scanLinesOrCarriageReturns(data, true)
		if err != nil {
			t.Fatal(err)
		}
		tokens = append(tokens, string(token))
		data = data[advance:]
	}
	if len(tokens) != 3 || tokens[0] != "one" || tokens[1] != "two" || tokens[2] != "three" {
		t.Fatalf("unexpected tokens %q", tokens)
	}
}
