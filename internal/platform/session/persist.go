package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Persister is the durable copy of the session set.
type Persister interface {
	LoadAll(ctx context.Context) ([]*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// FilePersister keeps every session in one JSON file, rewritten through a
// temp file and rename on each change so a crash never leaves a torn file.
type FilePersister struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*Session
	loaded   bool
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path, sessions: make(map[string]*Session)}
}

func (p *FilePersister) LoadAll(ctx context.Context) ([]*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.load(); err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *FilePersister) Save(ctx context.Context, s *Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.load(); err != nil {
		return err
	}
	prev, had := p.sessions[s.ID]
	p.sessions[s.ID] = s.clone()
	if err := p.flush(); err != nil {
		if had {
			p.sessions[s.ID] = prev
		} else {
			delete(p.sessions, s.ID)
		}
		return err
	}
	return nil
}

func (p *FilePersister) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.load(); err != nil {
		return err
	}
	prev, had := p.sessions[id]
	if !had {
		return nil
	}
	delete(p.sessions, id)
	if err := p.flush(); err != nil {
		p.sessions[id] = prev
		return err
	}
	return nil
}

func (p *FilePersister) load() error {
	if p.loaded {
		return nil
	}
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		p.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	var list []*Session
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("parse session file %s: %w", p.path, err)
		}
	}
	for _, s := range list {
		p.sessions[s.ID] = s
	}
	p.loaded = true
	return nil
}

func (p *FilePersister) flush() error {
	list := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// MemoryPersister keeps nothing across restarts. Tests and throwaway
// development consoles use it.
type MemoryPersister struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// FailSaves makes every Save return an error.
	FailSaves bool
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{sessions: make(map[string]*Session)}
}

func (p *MemoryPersister) LoadAll(ctx context.Context) ([]*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s.clone())
	}
	return out, nil
}

func (p *MemoryPersister) Save(ctx context.Context, s *Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSaves {
		return errors.New("memory persister: save disabled")
	}
	p.sessions[s.ID] = s.clone()
	return nil
}

func (p *MemoryPersister) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, id)
	return nil
}
