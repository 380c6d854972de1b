package publisher

import (
	"fmt"
	"strings"

	"github.com/shouni/go-story-kit/pkg/domain"
)

const noImageText = "_(no image available)_"

// BuildMarkdown は、物語のメタデータとパネルを Markdown 文字列にまとめます。
// imagePaths[i] が空のパネルは「画像なし」として出力します。
func BuildMarkdown(story domain.Story, imagePaths []string) string {
	var sb strings.Builder

	title := story.Metadata.Title
	if title == "" {
		title = "Untitled Story"
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	if story.Metadata.Tagline != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n\n", story.Metadata.Tagline))
	}
	if story.Metadata.Genre != "" || story.Metadata.Difficulty != "" {
		sb.WriteString(fmt.Sprintf("- genre: %s\n- difficulty: %s\n\n", story.Metadata.Genre, story.Metadata.Difficulty))
	}
	if story.Metadata.Description != "" {
		sb.WriteString(story.Metadata.Description + "\n\n")
	}

	for i, panel := range story.Panels {
		sb.WriteString(fmt.Sprintf("## Panel %d\n\n", panel.PanelIndex))

		if panel.Input != "" {
			sb.WriteString(fmt.Sprintf("> %s\n\n", strings.TrimSpace(panel.Input)))
		}

		img := ""
		if i < len(imagePaths) {
			img = imagePaths[i]
		}
		if img != "" {
			sb.WriteString(fmt.Sprintf("![Panel %d](%s)\n\n", panel.PanelIndex, img))
		} else {
			sb.WriteString(noImageText + "\n\n")
		}

		sb.WriteString(strings.TrimSpace(panel.NarrativeText) + "\n\n")

		if panel.Final {
			if len(panel.Options) > 0 {
				sb.WriteString("**Possible endings**\n\n")
				writeOptions(&sb, panel.Options)
			}
			sb.WriteString("**THE END**\n")
			continue
		}
		writeOptions(&sb, panel.Options)
	}
	return sb.String()
}

func writeOptions(sb *strings.Builder, options []domain.Option) {
	if len(options) == 0 {
		return
	}
	for _, o := range options {
		sb.WriteString(fmt.Sprintf("%d. %s\n", o.ID, o.Text))
	}
	sb.WriteString("\n")
}
