package stencil

import (
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/stencilkit/stencil/parser"
)

// DefaultConfigFile is the configuration file looked up next to the
// compiled package when no explicit path is given.
const DefaultConfigFile = "stencil.toml"

// EscaperConfig binds an escaper to a set of file extensions. Path is
// either one of the built-in keys ("html", "text") or a Go selector
// expression naming a custom escaper value.
type EscaperConfig struct {
	Path       string
	Extensions []string
}

// Config is the settled compiler configuration.
type Config struct {
	Dirs          []string
	DefaultSyntax string
	Whitespace    parser.Whitespace
	Syntaxes      map[string]*Syntax
	Escapers      []EscaperConfig
}

type rawGeneral struct {
	Dirs          []string `toml:"dirs"`
	DefaultSyntax string   `toml:"default_syntax"`
	Whitespace    string   `toml:"whitespace" validate:"omitempty,oneof=preserve suppress minimize"`
}

type rawSyntax struct {
	Name         string `toml:"name" validate:"required"`
	BlockStart   string `toml:"block_start"`
	BlockEnd     string `toml:"block_end"`
	ExprStart    string `toml:"expr_start"`
	ExprEnd      string `toml:"expr_end"`
	CommentStart string `toml:"comment_start"`
	CommentEnd   string `toml:"comment_end"`
}

type rawEscaper struct {
	Path       string   `toml:"path" validate:"required"`
	Extensions []string `toml:"extensions" validate:"required,min=1"`
}

type rawConfig struct {
	General rawGeneral   `toml:"general"`
	Syntax  []rawSyntax  `toml:"syntax" validate:"dive"`
	Escaper []rawEscaper `toml:"escaper" validate:"dive"`
}

// defaultEscapers is the built-in extension table. Later entries from the
// configuration take priority over these.
func defaultEscapers() []EscaperConfig {
	return []EscaperConfig{
		{Path: "html", Extensions: []string{"html", "htm", "svg", "xml"}},
		{Path: "text", Extensions: []string{"md", "none", "txt", "yml", ""}},
		{Path: "html", Extensions: []string{"j2", "jinja", "jinja2"}},
	}
}

// DefaultConfig returns the configuration used when no file is present:
// the default syntax, preserve whitespace, and the built-in escaper table.
func DefaultConfig() *Config {
	cfg, err := NewConfig(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// NewConfig parses and validates a TOML configuration source. A nil or
// empty source yields the defaults.
func NewConfig(source []byte) (*Config, error) {
	var raw rawConfig
	if len(source) > 0 {
		if err := toml.Unmarshal(source, &raw); err != nil {
			return nil, NewConfigError("malformed configuration: %s", err)
		}
	}
	if err := validator.New().Struct(&raw); err != nil {
		return nil, NewConfigError("invalid configuration: %s", err)
	}

	cfg := &Config{
		Dirs:          raw.General.Dirs,
		DefaultSyntax: raw.General.DefaultSyntax,
		Syntaxes:      map[string]*Syntax{"default": DefaultSyntax()},
		Escapers:      defaultEscapers(),
	}

	switch raw.General.Whitespace {
	case "", "preserve":
		cfg.Whitespace = parser.WhitespacePreserve
	case "suppress":
		cfg.Whitespace = parser.WhitespaceSuppress
	case "minimize":
		cfg.Whitespace = parser.WhitespaceMinimize
	}

	if cfg.DefaultSyntax == "" {
		cfg.DefaultSyntax = "default"
	}

	for _, rs := range raw.Syntax {
		if _, exists := cfg.Syntaxes[rs.Name]; exists && rs.Name == "default" {
			return nil, NewConfigError("syntax name %q is reserved", rs.Name)
		}
		if _, exists := cfg.Syntaxes[rs.Name]; exists {
			return nil, NewConfigError("duplicate syntax name %q", rs.Name)
		}
		syntax := DefaultSyntax()
		if rs.BlockStart != "" {
			syntax.BlockStart = rs.BlockStart
		}
		if rs.BlockEnd != "" {
			syntax.BlockEnd = rs.BlockEnd
		}
		if rs.ExprStart != "" {
			syntax.ExprStart = rs.ExprStart
		}
		if rs.ExprEnd != "" {
			syntax.ExprEnd = rs.ExprEnd
		}
		if rs.CommentStart != "" {
			syntax.CommentStart = rs.CommentStart
		}
		if rs.CommentEnd != "" {
			syntax.CommentEnd = rs.CommentEnd
		}
		if err := syntax.Validate(); err != nil {
			return nil, err
		}
		cfg.Syntaxes[rs.Name] = syntax
	}

	if _, ok := cfg.Syntaxes[cfg.DefaultSyntax]; !ok {
		return nil, NewConfigError("default syntax %q is not defined", cfg.DefaultSyntax)
	}

	for _, re := range raw.Escaper {
		cfg.Escapers = append(cfg.Escapers, EscaperConfig{Path: re.Path, Extensions: re.Extensions})
	}

	return cfg, nil
}

// LoadConfig reads a configuration file. A missing file yields the
// defaults; a present but unreadable or invalid file is an error.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, NewIOError("cannot stat %s: %s", path, err)
	}
	if !exists {
		return DefaultConfig(), nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, NewIOError("cannot read %s: %s", path, err)
	}
	return NewConfig(data)
}

// SyntaxNamed returns a configured syntax by name.
func (c *Config) SyntaxNamed(name string) (*Syntax, error) {
	if name == "" {
		name = c.DefaultSyntax
	}
	syntax, ok := c.Syntaxes[name]
	if !ok {
		return nil, NewResolutionError("syntax %q is not defined", name)
	}
	return syntax, nil
}

// EscaperFor maps a template file extension to an escaper path. Later
// configuration entries shadow earlier and built-in ones.
func (c *Config) EscaperFor(ext string) (string, error) {
	for i := len(c.Escapers) - 1; i >= 0; i-- {
		for _, e := range c.Escapers[i].Extensions {
			if e == ext {
				return c.Escapers[i].Path, nil
			}
		}
	}
	return "", NewResolutionError("no escaper is defined for extension %q", ext)
}
