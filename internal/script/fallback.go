package script

import (
	"fmt"
	"strings"

	"github.com/unalkalkan/podcaster/pkg/types"
)

// Scripts rebuilt from sections are padded with an intro and outro below this length
const minFinalTurns = 6

func fallbackAnalysis(p params) analysis {
	return analysis{
		KeyPoints:         []string{fmt.Sprintf("The main ideas presented in %q", p.title)},
		Themes:            []string{p.title},
		AudienceTakeaways: []string{fmt.Sprintf("A clear understanding of the essentials of %q", p.title)},
	}
}

// fallbackPlan splits the target duration 20/60/20 into intro, discussion and conclusion
func fallbackPlan(p params) plan {
	total := p.targetMinutes
	intro := total * 0.2
	conclusion := total * 0.2
	main := total - intro - conclusion
	return plan{
		Sections: []planSection{
			{Title: "Introduction", Duration: intro, Description: fmt.Sprintf("Welcome the listeners and introduce %q", p.title)},
			{Title: "Main Discussion", Duration: main, Description: "Walk through the key points of the document"},
			{Title: "Conclusion", Duration: conclusion, Description: "Summarize the takeaways and close the show"},
		},
		TotalDuration: total,
	}
}

func fallbackHosts(p params) hosts {
	return hosts{
		Host1: host{Name: p.speaker1, Personality: "warm, clear and knowledgeable", Role: "friendly host"},
		Host2: host{Name: p.speaker2, Personality: "inquisitive and upbeat", Role: "curious co-host"},
	}
}

// fallbackSection emits a templated four-line exchange about the section
func fallbackSection(p params, s planSection) section {
	detail := strings.TrimSpace(s.Description)
	if detail == "" {
		detail = "There is quite a bit to unpack here."
	} else {
		detail = "In short: " + detail + "."
	}
	return section{
		SectionTitle: s.Title,
		Dialogue: []dialogueLine{
			{Speaker: p.speaker1, Text: fmt.Sprintf("Let's talk about %s.", s.Title)},
			{Speaker: p.speaker2, Text: fmt.Sprintf("Sounds good! What should our listeners know about %s?", s.Title)},
			{Speaker: p.speaker1, Text: detail},
			{Speaker: p.speaker2, Text: fmt.Sprintf("Thanks, that really helps put %s in context.", s.Title)},
		},
	}
}

// fallbackFinal rebuilds the script from the collected section dialogue,
// applying review revisions by exact text replacement
func fallbackFinal(p params, sections []section, rv review) finalScript {
	var f finalScript
	f.Config.Language = firstNonEmpty(p.language, types.DefaultLanguage)

	for _, sec := range sections {
		for _, line := range sec.Dialogue {
			speaker, ok := resolveSpeaker(line.Speaker, p)
			if !ok {
				continue
			}
			f.Script = append(f.Script, finalLine{
				Name:    displayName(speaker, p),
				Message: applyRevisions(line.Text, rv.DialogueRevisions),
			})
		}
	}

	if len(f.Script) < minFinalTurns {
		intro := []finalLine{
			{Name: p.speaker1, Message: fmt.Sprintf("Welcome to %s! I'm %s, and I'm here with %s.", p.title, p.speaker1, p.speaker2)},
			{Name: p.speaker2, Message: "Hi everyone! We have a great topic today, so let's dive right in."},
		}
		outro := []finalLine{
			{Name: p.speaker1, Message: "That's all we have time for today. Thanks for listening!"},
			{Name: p.speaker2, Message: "Thanks, everyone. See you next time!"},
		}
		f.Script = append(append(intro, f.Script...), outro...)
	}
	return f
}

func applyRevisions(text string, revisions []revision) string {
	for _, rv := range revisions {
		if rv.Original == "" {
			continue
		}
		text = strings.ReplaceAll(text, rv.Original, rv.Revised)
	}
	return text
}

// apologyScript is returned when generation fails outside every stage recovery
func apologyScript(p params) *types.PodcastScript {
	return &types.PodcastScript{
		Language: firstNonEmpty(p.language, types.DefaultLanguage),
		Turns: []types.DialogueTurn{
			newTurn(types.Speaker1, fmt.Sprintf("Sorry everyone, we ran into a problem while preparing today's episode about %s.", p.title), p),
			newTurn(types.Speaker2, "We'll be back soon with the full story. Thanks for your patience!", p),
		},
	}
}
