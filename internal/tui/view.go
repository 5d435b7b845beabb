package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"graphrag/internal/session"
)

const (
	headerLines = 12

	emptyStateText     = "Upload a document and ask a question to get started"
	loadingAnswerText  = "Loading answer..."
	loadingSourcesText = "Loading sources..."
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	promptStyle    = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("11")).Padding(0, 1)
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	chipStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Background(lipgloss.Color("236")).Padding(0, 1)
	answerDot      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("●")
	sourcesDot     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Render("●")
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// View renders the TUI layout: identifiers, upload, question, then the result panels.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Graph RAG") + "\n")
	b.WriteString(m.inputs[fieldWorkspace].View() + "   " + m.inputs[fieldCollection].View() + "\n\n")

	b.WriteString(titleStyle.Render("Upload Document") + "\n")
	b.WriteString(m.inputs[fieldCollectionName].View() + "\n")
	b.WriteString(m.inputs[fieldFile].View() + "\n")
	b.WriteString(statusStyle.Render(m.store.UploadStatus().String()) + "\n\n")

	b.WriteString(titleStyle.Render("Ask a Question") + "\n")
	b.WriteString(m.inputs[fieldQuery].View() + "\n")
	b.WriteString(mutedStyle.Render(m.helpLine()) + "\n")

	if m.prompt != "" {
		b.WriteString(promptStyle.Render(m.prompt+"  [enter]") + "\n")
	}

	if m.store.View() == session.ViewEmpty {
		b.WriteString(panelStyle.Width(m.width - 2).Render(mutedStyle.Render(emptyStateText)))
		return b.String()
	}

	width := m.panelWidth()
	answer := panelStyle.Width(width).Render(m.renderAnswer(width))
	sources := panelStyle.Width(width).Render(sourcesDot + " " + titleStyle.Render("Source Documents") + "\n\n" + m.viewport.View())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, answer, sources))
	return b.String()
}

func (m Model) helpLine() string {
	if m.store.Query().IsLoading() {
		return m.spinner.View() + " Searching...   tab: next field  ctrl+c: quit"
	}
	return "enter: search  ctrl+u: upload  tab: next field  pgup/pgdown: scroll sources  ctrl+c: quit"
}

func (m Model) renderAnswer(width int) string {
	var b strings.Builder
	b.WriteString(answerDot + " " + titleStyle.Render("Answer") + "\n\n")

	q := m.store.Query()
	if q.Answer == nil {
		b.WriteString(mutedStyle.Render(loadingAnswerText))
		return b.String()
	}
	b.WriteString(lipgloss.NewStyle().Width(width).Render(q.Answer.Answer))
	if len(q.Answer.KeyEntities) > 0 {
		b.WriteString("\n\n" + mutedStyle.Render("Key Entities:") + "\n")
		b.WriteString(renderChips(q.Answer.KeyEntities, width))
	}
	return b.String()
}

func (m Model) renderSources(width int) string {
	q := m.store.Query()
	if !q.HasResults() {
		return mutedStyle.Render(loadingSourcesText)
	}
	if len(q.Results) == 0 {
		return mutedStyle.Render("No matching sources.")
	}

	blocks := make([]string, 0, len(q.Results))
	for i, r := range q.Results {
		header := fmt.Sprintf("Source %d    Score: %.3f", i+1, r.DisplayScore())
		body := highlightBestSentence(r.Preview(m.opts.PreviewChars), q.Query)
		block := mutedStyle.Render(header) + "\n" + lipgloss.NewStyle().Width(width).Render(body)
		if chips := r.EntityChips(m.opts.MaxEntityChips); len(chips) > 0 {
			block += "\n" + renderChips(chips, width)
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func renderChips(names []string, width int) string {
	rendered := make([]string, 0, len(names))
	for _, n := range names {
		rendered = append(rendered, chipStyle.Render(n))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(rendered, " "))
}

// highlightBestSentence marks the sentence sharing the most distinct words with the query.
func highlightBestSentence(text, query string) string {
	queryWords := wordSet(query)
	if len(queryWords) == 0 || strings.TrimSpace(text) == "" {
		return text
	}
	best, bestHits := "", 0
	for _, sentence := range sentenceRe.FindAllString(text, -1) {
		hits := 0
		for w := range wordSet(sentence) {
			if queryWords[w] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = sentence, hits
		}
	}
	if bestHits == 0 {
		return text
	}
	return strings.Replace(text, best, highlightStyle.Render(best), 1)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range unicodeWordRe.FindAllString(strings.ToLower(s), -1) {
		set[w] = true
	}
	return set
}
