package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SeedModule is one module document in the seed directory, with its topics
// and their questions.
type SeedModule struct {
	Module `yaml:",inline"`
	Topics []SeedTopic `yaml:"topics"`
}

// SeedTopic is a topic with the questions that ship with it.
type SeedTopic struct {
	Topic     `yaml:",inline"`
	Questions []QuizQuestion `yaml:"questions"`
}

// Seeder receives seed content. The data store adapter implements it.
type Seeder interface {
	InsertModule(ctx context.Context, m Module) (Module, error)
	InsertTopic(ctx context.Context, t Topic) (Topic, error)
	InsertQuestion(ctx context.Context, q QuizQuestion) (QuizQuestion, error)
}

// Loader loads curriculum seed content from YAML files on disk.
type Loader struct {
	rootDir string
	modules []SeedModule
	mu      sync.RWMutex
}

// NewLoader creates a new curriculum loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{rootDir: rootDir}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum seed loaded", "modules", len(l.modules), "topics", l.topicCount())
	return l, nil
}

// Modules returns the loaded modules ordered by order_index.
func (l *Loader) Modules() []SeedModule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]SeedModule, len(l.modules))
	copy(out, l.modules)
	return out
}

// Seed inserts every loaded module, topic and question into s.
func (l *Loader) Seed(ctx context.Context, s Seeder) error {
	for _, sm := range l.Modules() {
		m, err := s.InsertModule(ctx, sm.Module)
		if err != nil {
			return fmt.Errorf("seed module %q: %w", sm.Title, err)
		}
		for _, st := range sm.Topics {
			t := st.Topic
			t.ModuleID = m.ID
			if len(st.Questions) > 0 {
				t.HasQuestions = true
			}
			if _, err := s.InsertTopic(ctx, t); err != nil {
				return fmt.Errorf("seed topic %s: %w", t.ID, err)
			}
			for _, q := range st.Questions {
				q.TopicID = t.ID
				if _, err := s.InsertQuestion(ctx, q); err != nil {
					return fmt.Errorf("seed question for topic %s: %w", t.ID, err)
				}
			}
		}
	}
	return nil
}

func (l *Loader) topicCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, m := range l.modules {
		n += len(m.Topics)
	}
	return n
}

func (l *Loader) loadAll() error {
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadModule(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	sort.SliceStable(l.modules, func(i, j int) bool {
		return l.modules[i].OrderIndex < l.modules[j].OrderIndex
	})
	l.mu.Unlock()
	return nil
}

func (l *Loader) loadModule(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var m SeedModule
	if err := yaml.Unmarshal(data, &m); err != nil {
		slog.Warn("skipping invalid module YAML", "path", path, "error", err)
		return nil
	}

	if m.Title == "" {
		return nil // Not a module file
	}
	if !m.Subject.Valid() {
		slog.Warn("skipping module with unknown subject", "path", path, "subject", m.Subject)
		return nil
	}

	l.mu.Lock()
	l.modules = append(l.modules, m)
	l.mu.Unlock()

	return nil
}
