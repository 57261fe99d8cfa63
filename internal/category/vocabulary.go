package category

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category is a named list of match terms.
type Category struct {
	Name  string
	Terms []string
}

// Vocabulary is the ordered category catalog. Declaration order breaks count ties.
type Vocabulary struct {
	categories []Category
	order      map[string]int
}

func NewVocabulary(categories []Category) (*Vocabulary, error) {
	v := &Vocabulary{order: make(map[string]int, len(categories))}
	for _, c := range categories {
		if c.Name == "" {
			return nil, errors.New("category name must not be empty")
		}
		if _, dup := v.order[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		v.order[c.Name] = len(v.categories)
		v.categories = append(v.categories, Category{Name: c.Name, Terms: append([]string(nil), c.Terms...)})
	}
	return v, nil
}

// Categories returns a copy of the catalog in declaration order.
func (v *Vocabulary) Categories() []Category {
	out := make([]Category, len(v.categories))
	copy(out, v.categories)
	return out
}

func (v *Vocabulary) Names() []string {
	names := make([]string, len(v.categories))
	for i, c := range v.categories {
		names[i] = c.Name
	}
	return names
}

// Rank is the declaration index of a category; unknown names sort last.
func (v *Vocabulary) Rank(name string) int {
	if i, ok := v.order[name]; ok {
		return i
	}
	return len(v.categories)
}

func (v *Vocabulary) Len() int { return len(v.categories) }

func DefaultVocabulary() *Vocabulary {
	v, _ := NewVocabulary([]Category{
		{Name: "User", Terms: []string{"user", "users", "account", "profile", "login", "permission", "role", "customer"}},
		{Name: "Integration", Terms: []string{"api", "integration", "webhook", "endpoint", "sdk", "connector", "oauth", "plugin"}},
		{Name: "Process", Terms: []string{"workflow", "process", "step", "pipeline", "approval", "schedule", "task", "automation"}},
		{Name: "Data", Terms: []string{"data", "database", "schema", "table", "record", "query", "export", "import"}},
		{Name: "UI", Terms: []string{"ui", "interface", "button", "screen", "dashboard", "page", "menu", "form"}},
		{Name: "System", Terms: []string{"system", "server", "configuration", "deployment", "install", "performance", "security", "log"}},
	})
	return v
}

// LoadVocabulary reads a YAML mapping of category name to term list, keeping the file's key
// order. A missing file yields the default vocabulary and fromDefault=true.
func LoadVocabulary(path string) (v *Vocabulary, fromDefault bool, err error) {
	if path == "" {
		return DefaultVocabulary(), true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultVocabulary(), true, nil
		}
		return nil, false, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	v, err = ParseVocabulary(data)
	if err != nil {
		return nil, false, err
	}
	if v.Len() == 0 {
		return DefaultVocabulary(), true, nil
	}
	return v, false, nil
}

// ParseVocabulary decodes YAML of the form
//
//	Integration: [api, webhook]
//	Data: [database, schema]
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if len(root.Content) == 0 {
		return NewVocabulary(nil)
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("vocabulary must be a mapping of category to terms, got line %d", doc.Line)
	}

	categories := make([]Category, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]

		var terms []string
		if err := value.Decode(&terms); err != nil {
			return nil, fmt.Errorf("failed to decode terms for %q: %w", key.Value, err)
		}
		categories = append(categories, Category{Name: key.Value, Terms: terms})
	}

	return NewVocabulary(categories)
}
