package speech

import (
	"sort"
	"strings"

	"github.com/unalkalkan/podcaster/pkg/types"
)

// HDVoices maps short Azure voice names to their HD variants
var HDVoices = map[string]string{
	"de-DE-Seraphina": "de-DE-Seraphina:DragonHDLatestNeural",
	"en-US-Andrew":    "en-US-Andrew:DragonHDLatestNeural",
	"en-US-Andrew2":   "en-US-Andrew2:DragonHDLatestNeural",
	"en-US-Aria":      "en-US-Aria:DragonHDLatestNeural",
	"en-US-Ava":       "en-US-Ava:DragonHDLatestNeural",
	"en-US-Davis":     "en-US-Davis:DragonHDLatestNeural",
	"en-US-Emma":      "en-US-Emma:DragonHDLatestNeural",
	"en-US-Emma2":     "en-US-Emma2:DragonHDLatestNeural",
	"en-US-Jenny":     "en-US-Jenny:DragonHDLatestNeural",
	"en-US-Steffan":   "en-US-Steffan:DragonHDLatestNeural",
	"ja-JP-Masaru":    "ja-JP-Masaru:DragonHDLatestNeural",
	"zh-CN-Xiaochen":  "zh-CN-Xiaochen:DragonHDLatestNeural",
}

// ResolveVoice expands a short HD alias; other names pass through unchanged
func ResolveVoice(name string) string {
	name = strings.TrimSpace(name)
	if hd, ok := HDVoices[name]; ok {
		return hd
	}
	return name
}

// HDVoiceNames returns the sorted short names of the HD voices
func HDVoiceNames() []string {
	names := make([]string, 0, len(HDVoices))
	for name := range HDVoices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func voiceMap(speaker1, speaker2 string) map[types.Speaker]string {
	return map[types.Speaker]string{
		types.Speaker1: speaker1,
		types.Speaker2: speaker2,
	}
}
