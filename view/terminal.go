package view

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal draws the feed list, the banner and the add-feed input state to
// a writer. It implements Container, BannerRegion and form.Input.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	rows    []Row
	enabled bool
	input   string
	banner  string
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:     out,
		enabled: true,
	}
}

func (t *Terminal) Render(rows []Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = rows

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("Subscriptions (%d)", len(rows))))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(DimStyle.Render("  no feeds yet, add one with: add <url>"))
		b.WriteString("\n")
	}
	for i, row := range rows {
		b.WriteString(IndexStyle.Render(fmt.Sprintf("%d.", i+1)))
		title := row.Feed.Title
		if title == "" {
			title = row.Feed.Url
		}
		b.WriteString(TitleStyle.Render(title))
		b.WriteString(" ")
		b.WriteString(LinkStyle.Render(row.Feed.Url))
		b.WriteString(" ")
		b.WriteString(DimStyle.Render(fmt.Sprintf("#%d", row.Feed.Id)))
		if row.Pending {
			b.WriteString(" ")
			b.WriteString(PendingStyle.Render("removing..."))
		}
		b.WriteString("\n")
	}
	fmt.Fprint(t.out, b.String())
}

// Rows returns what was rendered last
func (t *Terminal) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Row returns the row shown with the given 1-based number.
func (t *Terminal) Row(number int) (Row, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if number < 1 || number > len(t.rows) {
		return Row{}, false
	}
	return t.rows[number-1], true
}

func (t *Terminal) ShowStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banner = text
	fmt.Fprintln(t.out, StatusStyle.Render(text))
}

func (t *Terminal) ShowError(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banner = text
	fmt.Fprintln(t.out, ErrorStyle.Render(text))
}

// Hide clears the banner. Nothing is printed when none is showing.
func (t *Terminal) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.banner == "" {
		return
	}
	fmt.Fprintln(t.out, DimStyle.Render(fmt.Sprintf("dismissed: %s", t.banner)))
	t.banner = ""
}

// Banner returns the message currently shown, or "" when hidden.
func (t *Terminal) Banner() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.banner
}

func (t *Terminal) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Terminal) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetInput records what the user typed into the url field.
func (t *Terminal) SetInput(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = text
}

func (t *Terminal) Input() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input
}

func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = ""
}
