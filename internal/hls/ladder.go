package hls

import (
	"fmt"
	"strconv"
	"strings"
)

// Rendition describes one quality variant of the ladder: the resolution label
// exposed in playback URLs plus the encode targets for that variant. Width is
// derived from the source aspect ratio at encode time.
type Rendition struct {
	Name         string
	Height       int
	VideoBitrate string
	AudioBitrate string
}

const defaultAudioBitrate = "128k"

// Ladder is the fixed, ordered set of renditions produced for every video.
// Order is the processing order of the transcode worker; label lookup is used
// by the serving boundary to reject unknown resolutions before any filesystem
// access.
type Ladder []Rendition

// DefaultLadder returns the stock three-step ladder.
func DefaultLadder() Ladder {
	return Ladder{
		{Name: "480p", Height: 480, VideoBitrate: "1000k", AudioBitrate: defaultAudioBitrate},
		{Name: "720p", Height: 720, VideoBitrate: "2500k", AudioBitrate: defaultAudioBitrate},
		{Name: "1080p", Height: 1080, VideoBitrate: "5000k", AudioBitrate: defaultAudioBitrate},
	}
}

// Lookup returns the rendition for the provided resolution label.
func (l Ladder) Lookup(name string) (Rendition, bool) {
	for _, rendition := range l {
		if rendition.Name == name {
			return rendition, true
		}
	}
	return Rendition{}, false
}

// Names returns the ordered resolution labels of the ladder.
func (l Ladder) Names() []string {
	names := make([]string, 0, len(l))
	for _, rendition := range l {
		names = append(names, rendition.Name)
	}
	return names
}

// ParseLadder decodes a ladder specification of the form
// "480p=480:1000k,720p=720:2500k". An empty specification yields the default
// ladder.
func ParseLadder(spec string) (Ladder, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultLadder(), nil
	}
	entries := strings.Split(spec, ",")
	ladder := make(Ladder, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, targets, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid ladder entry %q, expected name=height:bitrate", entry)
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, "/\\") {
			return nil, fmt.Errorf("invalid rendition name %q", name)
		}
		if _, exists := seen[name]; exists {
			return nil, fmt.Errorf("duplicate rendition name %q", name)
		}
		heightPart, bitrate, ok := strings.Cut(strings.TrimSpace(targets), ":")
		if !ok {
			return nil, fmt.Errorf("invalid ladder entry %q, expected name=height:bitrate", entry)
		}
		height, err := strconv.Atoi(strings.TrimSpace(heightPart))
		if err != nil || height <= 0 {
			return nil, fmt.Errorf("invalid height in ladder entry %q", entry)
		}
		bitrate = strings.TrimSpace(bitrate)
		if bitrate == "" {
			return nil, fmt.Errorf("missing bitrate in ladder entry %q", entry)
		}
		seen[name] = struct{}{}
		ladder = append(ladder, Rendition{
			Name:         name,
			Height:       height,
			VideoBitrate: bitrate,
			AudioBitrate: defaultAudioBitrate,
		})
	}
	if len(ladder) == 0 {
		return nil, fmt.Errorf("ladder specification %q contains no renditions", spec)
	}
	return ladder, nil
}
