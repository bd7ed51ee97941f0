package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/lingonews/internal/feed"
	"github.com/matheuskafuri/lingonews/internal/news"
	"github.com/matheuskafuri/lingonews/internal/provider"
)

var (
	// Adaptive colors for dark/light terminals
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	levelStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	descStyle = lipgloss.NewStyle().
			PaddingLeft(3).
			Width(90)
)

func renderArticles(w io.Writer, resp *news.Response) {
	header := fmt.Sprintf("%s · page %d · %d of %d", resp.ProviderID, resp.Page, len(resp.Articles), resp.TotalResults)
	fmt.Fprintln(w, headerStyle.Render(header))
	if resp.Degraded {
		fmt.Fprintln(w, warnStyle.Render("live sources unavailable, showing stored articles"))
	}
	if len(resp.Articles) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No articles."))
		return
	}
	fmt.Fprintln(w)

	for i, a := range resp.Articles {
		meta := []string{sourceStyle.Render(a.Source), dimStyle.Render(relativeTime(a.PublishedAt))}
		if a.Category != "" {
			meta = append(meta, dimStyle.Render(string(a.Category)))
		}
		if a.Difficulty != "" {
			meta = append(meta, levelStyle.Render(a.Difficulty))
		}
		fmt.Fprintf(w, "%2d. %s\n", i+1, titleStyle.Render(a.Title))
		fmt.Fprintf(w, "    %s\n", strings.Join(meta, dimStyle.Render(" · ")))
		if a.Description != "" {
			fmt.Fprintln(w, descStyle.Render(a.Description))
		}
		fmt.Fprintf(w, "    %s\n\n", dimStyle.Render(a.URL))
	}
}

func renderProviders(w io.Writer, infos []provider.Info, available map[string]bool, feeds map[string]int) {
	fmt.Fprintln(w, headerStyle.Render("Providers"))
	if len(infos) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No providers enabled."))
		return
	}
	for _, info := range infos {
		status := warnStyle.Render("unavailable")
		if available[info.ID] {
			status = sourceStyle.Render("available")
		}
		detail := strings.Join(info.Languages, ",")
		if n, ok := feeds[info.ID]; ok {
			detail += fmt.Sprintf(" · %d feeds", n)
		}
		fmt.Fprintf(w, "  %-14s %-24s %s  %s\n", info.ID, info.Name, status, dimStyle.Render(detail))
	}
}

func renderEasy(w io.Writer, articles []feed.EasyArticle) {
	fmt.Fprintln(w, headerStyle.Render("NHK News Web Easy"))
	if len(articles) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No articles."))
		return
	}
	for _, a := range articles {
		fmt.Fprintf(w, "  %s  %s\n", dimStyle.Render(a.PublishedAt.Format("2006-01-02 15:04")), titleStyle.Render(a.Title))
		fmt.Fprintf(w, "  %s\n", dimStyle.Render(a.URL))
	}
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
