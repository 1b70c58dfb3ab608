// Package downloader drives the N_m3u8DL-RE command line tool.
//
// A lesson is fetched in two invocations against the same playback URL: the
// first selects the best 1080p video stream (plus the best English audio
// track when requested) and the second pulls subtitles as SRT. Both runs save
// into the lesson's unit directory under the stem's base name, which is what
// the existence gate and the reconciler look for afterwards.
package downloader
