package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearthd/hearth/internal/persona"
)

func (r *Registry) registerSelfTools() {
	fileEnum := map[string]any{
		"type": "string",
		"enum": persona.EditableFiles(),
	}

	r.Register(&Tool{
		Name: "remember",
		Description: "Save a fact, preference, or instruction to persistent memory for use in future conversations. " +
			"Use whenever the user tells you something they want you to remember.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"note": stringProp("What to remember (e.g. 'User prefers spa at 38C')"),
			},
			"required": []string{"note"},
		},
		Handler: r.handleRemember,
	})

	r.Register(&Tool{
		Name: "read_self",
		Description: "Read one of the bot's own configuration files. " +
			"Available: soul.md (personality), ha_entities.md (known entities), briefing_prompt.md (morning briefing instructions).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": fileEnum,
			},
			"required": []string{"filename"},
		},
		Handler: r.handleReadSelf,
	})

	r.Register(&Tool{
		Name: "write_self",
		Description: "Overwrite one of the bot's own configuration files. " +
			"Changes to soul.md and briefing_prompt.md take effect on the next message. " +
			"Always read_self first. Available: soul.md, ha_entities.md, briefing_prompt.md.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": fileEnum,
				"content":  stringProp("Complete new file content"),
			},
			"required": []string{"filename", "content"},
		},
		Handler: r.handleWriteSelf,
	})
}

func (r *Registry) handleRemember(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Note string `json:"note"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if err := r.deps.Persona.Remember(p.Note); err != nil {
		return nil, err
	}
	return map[string]string{"status": "remembered", "note": p.Note}, nil
}

func (r *Registry) handleReadSelf(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Filename string `json:"filename"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	content, err := r.deps.Persona.ReadSelf(p.Filename)
	if errors.Is(err, persona.ErrUnknownFile) {
		return nil, fmt.Errorf("unknown file")
	}
	if err != nil {
		return nil, err
	}
	return map[string]string{"filename": p.Filename, "content": content}, nil
}

func (r *Registry) handleWriteSelf(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	err := r.deps.Persona.WriteSelf(p.Filename, p.Content)
	if errors.Is(err, persona.ErrUnknownFile) {
		return nil, fmt.Errorf("unknown file")
	}
	if err != nil {
		return nil, err
	}
	return map[string]string{"status": "written", "filename": p.Filename}, nil
}
