package policy

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load reads and parses a policy file. Missing files surface as
// fs.ErrNotExist so the store can distinguish "fall through" from
// "reject".
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing policy %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a policy document. Comments in the JSONC style are
// stripped first; decoding is strict — unknown fields reject the
// document rather than silently loading a partial policy.
func Parse(content []byte) (*Document, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(stripJSONC(content)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("invalid policy document: %w", err)
	}

	var doc Document
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			Result:           &doc,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &doc, conf); err != nil {
		return nil, fmt.Errorf("invalid policy document: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// stripJSONC removes // line comments and /* */ block comments outside
// string literals, leaving plain JSON the YAML parser accepts.
func stripJSONC(content []byte) []byte {
	out := make([]byte, 0, len(content))
	inString := false
	inLine := false
	inBlock := false

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				out = append(out, c)
			}
		case inBlock:
			if c == '*' && i+1 < len(content) && content[i+1] == '/' {
				inBlock = false
				i++
			} else if c == '\n' {
				out = append(out, c)
			}
		case inString:
			out = append(out, c)
			if c == '\\' && i+1 < len(content) {
				i++
				out = append(out, content[i])
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(content) && content[i+1] == '/':
			inLine = true
			i++
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			inBlock = true
			i++
		default:
			out = append(out, c)
		}
	}
	return out
}
