// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes habit tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/quipex/habit-button/internal/group"
	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/registry"
	"github.com/quipex/habit-button/internal/widget"
)

// TagFormatURI is the resource describing the log line format.
const TagFormatURI = "habit://tag-format"

// Deps are the collaborators of the MCP server.
type Deps struct {
	Vault      widget.Vault
	Registry   *registry.Registry
	Aggregator *group.Aggregator
	Collector  *habit.Collector
	Settings   habit.Settings
	Logger     *slog.Logger
}

// Server wraps the MCP server with habit tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
}

// New creates a new MCP server with all habit tools registered.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{deps: d}

	s.mcp = server.NewMCPServer(
		"habit-button",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("habit_stats",
		mcp.WithDescription("Scan the daily notes for a habit and report its streak, last entry and overdue state."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Habit title, e.g. \"Morning walk\"")),
	), s.habitStats)

	s.mcp.AddTool(mcp.NewTool("log_habit",
		mcp.WithDescription("Append a habit entry for the current time to today's daily note. "+
			"Read the habit://tag-format resource for the line format."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Habit title to log")),
	), s.logHabit)

	s.mcp.AddTool(mcp.NewTool("group_summary",
		mcp.WithDescription("Count the habits of a group that have an active streak."),
		mcp.WithString("group", mcp.Required(), mcp.Description("Group label (case-insensitive)")),
		mcp.WithString("locations", mcp.Description("Optional comma-separated folders or documents to scan (default: whole vault)")),
	), s.groupSummary)

	s.mcp.AddTool(mcp.NewTool("list_habits",
		mcp.WithDescription("List every habit block declared in the vault with its streak."),
	), s.listHabits)

	s.mcp.AddTool(mcp.NewTool("find_duplicates",
		mcp.WithDescription("List habits declared by more than one document."),
	), s.findDuplicates)

	// Resource: tag format.
	s.mcp.AddResource(
		mcp.NewResource(TagFormatURI, "Habit Tag Format",
			mcp.WithResourceDescription("How habit entries are written to and read from daily notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTagFormatResource,
	)

	return s
}

// ServeStdio serves on stdin/stdout until ctx is done or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.deps.Logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// habitSummary is the JSON shape of one habit in tool results.
type habitSummary struct {
	Title      string   `json:"title"`
	HabitKey   string   `json:"habitKey"`
	Tag        string   `json:"tag"`
	Group      string   `json:"group,omitempty"`
	SourcePath string   `json:"sourcePath,omitempty"`
	DoneToday  bool     `json:"doneToday"`
	Streak     int      `json:"streak"`
	StreakText string   `json:"streakText"`
	LastEntry  string   `json:"lastEntry,omitempty"`
	Ago        string   `json:"ago"`
	Overdue    bool     `json:"overdue"`
	Hint       string   `json:"hint,omitempty"`
	Days       int      `json:"days"`
	Recent     []string `json:"recent,omitempty"`
}

func (s *Server) resolve(title string) (habit.Options, error) {
	opts, ok := habit.ResolveOptions(habit.BlockOptions{Title: title}, s.deps.Settings)
	if !ok {
		return habit.Options{}, fmt.Errorf("habit title %q has no usable characters", title)
	}
	return opts, nil
}

func (s *Server) summarize(opts habit.Options, stats *habit.Stats, sourcePath string) habitSummary {
	if stats == nil {
		stats = habit.NewStats(opts.GracePeriodHours, opts.WarningWindowHours)
	}
	now := s.deps.Collector.Now()
	meta := widget.BuildMeta(stats, now)
	out := habitSummary{
		Title:      opts.DisplayTitle,
		HabitKey:   opts.HabitKey,
		Tag:        opts.HabitTag,
		Group:      opts.Group,
		SourcePath: sourcePath,
		DoneToday:  stats.DoneOn(now),
		Streak:     meta.Streak,
		StreakText: meta.StreakText,
		Ago:        meta.Last,
		Overdue:    meta.Overdue,
		Hint:       meta.Hint,
		Days:       len(stats.HasByISO),
	}
	if stats.HasLast() {
		out.LastEntry = stats.LastTs.Format(time.RFC3339)
	}
	days := stats.Days()
	if len(days) > 7 {
		days = days[len(days)-7:]
	}
	for _, d := range days {
		out.Recent = append(out.Recent, habit.ISODate(d))
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) habitStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := s.resolve(title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats := s.deps.Collector.Collect(opts)
	return jsonResult(s.summarize(opts, stats, "")), nil
}

func (s *Server) logHabit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := s.resolve(title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, path, err := habit.LogEntry(s.deps.Vault, opts, s.deps.Collector.Now(), s.deps.Logger)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.deps.Aggregator.Tracker().MarkStale(path)
	return mcp.NewToolResultText(fmt.Sprintf("logged: %s %s in %s", opts.HabitTag, habit.FormatClock(ts), path)), nil
}

func (s *Server) groupSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var locations []string
	if raw, err := req.RequireString("locations"); err == nil {
		for _, loc := range strings.Split(raw, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				locations = append(locations, loc)
			}
		}
	}
	if len(locations) == 0 {
		docs, err := s.deps.Vault.List("")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, d := range docs {
			locations = append(locations, d.Path)
		}
	}

	source, err := yaml.Marshal(map[string]any{
		"group":           name,
		"habitsLocations": locations,
		"eagerScan":       true,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.deps.Aggregator.Render(string(source), "")), nil
}

func (s *Server) listHabits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.deps.Aggregator.Index(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recs := s.deps.Registry.GetAll()
	if len(recs) == 0 {
		return mcp.NewToolResultText("no habits found"), nil
	}
	out := make([]habitSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.summarize(rec.Options, rec.Stats, rec.SourcePath))
	}
	return jsonResult(out), nil
}

func (s *Server) findDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.deps.Aggregator.Index(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dups := s.deps.Registry.GetDuplicates()
	if len(dups) == 0 {
		return mcp.NewToolResultText("no duplicates found"), nil
	}
	keys := make([]string, 0, len(dups))
	for k := range dups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(":")
		for _, rec := range dups[k] {
			b.WriteString("\n  ")
			b.WriteString(rec.SourcePath)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) readTagFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TagFormatURI,
			MIMEType: "text/markdown",
			Text:     TagFormatContract(s.deps.Settings),
		},
	}, nil
}
