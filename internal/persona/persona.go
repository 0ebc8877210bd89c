// Package persona manages the assistant's identity files: its
// personality (soul.md), the entity reference (ha_entities.md), the
// briefing instructions (briefing_prompt.md), and its append-only
// memory notes. The assistant can read and rewrite the first three
// itself through tools; memory only grows.
package persona

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	FileSoul           = "soul.md"
	FileEntities       = "ha_entities.md"
	FileBriefingPrompt = "briefing_prompt.md"

	memoryFile = "memory.md"

	// Cap on search_entities matches, to keep tool results small.
	maxEntityMatches = 20
)

// ErrUnknownFile is returned when a read or write names a file outside
// the editable set.
var ErrUnknownFile = errors.New("unknown file")

// editableFiles is the closed set of self-editable files.
var editableFiles = map[string]bool{
	FileSoul:           true,
	FileEntities:       true,
	FileBriefingPrompt: true,
}

// Store holds the persona files for one assistant instance.
type Store struct {
	dir      string
	botName  string
	timezone string
	logger   *slog.Logger
}

// NewStore creates a persona store rooted at dir. The directory is
// created if missing; the individual files are optional.
func NewStore(dir, botName, timezone string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persona dir: %w", err)
	}
	return &Store{
		dir:      dir,
		botName:  botName,
		timezone: timezone,
		logger:   logger.With("component", "persona"),
	}, nil
}

// EditableFiles returns the names of the self-editable files, for tool
// schema enums.
func EditableFiles() []string {
	return []string{FileSoul, FileEntities, FileBriefingPrompt}
}

// ReadSelf returns the content of an editable file. A missing file reads
// as empty; an unknown filename returns [ErrUnknownFile].
func (s *Store) ReadSelf(filename string) (string, error) {
	if !editableFiles[filename] {
		return "", fmt.Errorf("%w: %s", ErrUnknownFile, filename)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	return string(data), nil
}

// WriteSelf overwrites an editable file. Changes take effect on the next
// message because the system prompt is rendered fresh each turn.
func (s *Store) WriteSelf(filename, content string) error {
	if !editableFiles[filename] {
		return fmt.Errorf("%w: %s", ErrUnknownFile, filename)
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	s.logger.Info("self file updated", "file", filename, "bytes", len(content))
	return nil
}

// Remember appends a note to persistent memory as a list item.
func (s *Store) Remember(note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return errors.New("empty note")
	}
	f, err := os.OpenFile(filepath.Join(s.dir, memoryFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "- %s\n", note); err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	s.logger.Info("memory note saved", "note", note)
	return nil
}

// Memory returns the full memory notes, empty if none exist.
func (s *Store) Memory() string {
	data, err := os.ReadFile(filepath.Join(s.dir, memoryFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SearchEntities finds lines in the entity reference matching the query,
// case-insensitive, capped at 20 matches.
func (s *Store) SearchEntities(query string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, FileEntities))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("entity reference file not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read entity reference: %w", err)
	}

	q := strings.ToLower(query)
	var matches []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(strings.ToLower(trimmed), q) {
			matches = append(matches, trimmed)
			if len(matches) >= maxEntityMatches {
				break
			}
		}
	}
	return matches, nil
}

// BriefingPrompt returns the briefing instructions, or empty if unset.
func (s *Store) BriefingPrompt() string {
	content, err := s.ReadSelf(FileBriefingPrompt)
	if err != nil {
		return ""
	}
	return content
}

// SystemPrompt renders the conversation system prompt. It is rebuilt on
// every call so soul, entity, and memory edits are live on the next turn.
func (s *Store) SystemPrompt(now time.Time) string {
	base := fmt.Sprintf("Current local date and time: %s\n\n", now.Format("Monday 02 January 2006, 15:04 MST")) +
		"You have tools to read entity states, control devices, remember things, and edit HA config files.\n" +
		"To find entity IDs: use search_entities with a broad keyword. " +
		"If search_entities returns nothing, try a different keyword, then try get_states_by_domain, then try get_state with a guessed ID. " +
		"Never give up after one failed search — try at least 3 approaches.\n" +
		"When taking actions, confirm what you did in one sentence.\n" +
		"When asked questions, fetch live data — never guess entity IDs without trying.\n" +
		"If you genuinely need information only the user has, use ask_user.\n\n" +
		fmt.Sprintf("TIMEZONE: All HA timestamps are UTC. Local timezone is %s. Always convert to local time before reporting.\n\n", s.timezone) +
		"FORMATTING: Never use markdown. No bold, italics, tables, * bullets, # headers, backticks.\n\n" +
		"BREVITY: First sentence is the answer. Add context only if essential. " +
		"Never say 'certainly', 'of course', 'happy to help', 'great question'. Just answer."

	memory := ""
	if mem := s.Memory(); mem != "" {
		memory = "\n\nYour persistent memory notes:\n" + mem
	}

	soul, _ := s.ReadSelf(FileSoul)
	if soul != "" {
		return soul + "\n\n---\n\n" + base + memory
	}
	return fmt.Sprintf("You are %s, an AI smart home assistant.\n\n", s.botName) + base + memory
}

// DelegateSystemPrompt renders the system prompt for the heavy-duty
// delegate sub-agent.
func (s *Store) DelegateSystemPrompt(now time.Time) string {
	return fmt.Sprintf("You are %s-Delegate, the heavy-duty sub-agent for a Home Assistant smart home.\n", s.botName) +
		"You handle complex tasks: refactors, multi-file edits, debugging, new automations.\n" +
		"You have the same tools as the main agent. Work carefully, verify your changes.\n" +
		"Return a clear summary of what you did.\n\n" +
		fmt.Sprintf("Current local date and time: %s\n", now.Format("Monday 02 January 2006, 15:04 MST")) +
		fmt.Sprintf("TIMEZONE: All HA timestamps are UTC. Local timezone is %s. Convert all times.\n", s.timezone) +
		"FORMATTING: Plain text only. No markdown."
}
