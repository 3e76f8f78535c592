package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// treeSitterParser extracts entities from an AST parsed by tree-sitter.
// It is the primary Parser implementation for supported languages; the
// braceParser heuristic covers the rest.
type treeSitterParser struct {
	config *LanguageConfig
	lang   *sitter.Language
}

// NewTreeSitterParser creates a Parser for a supported language.
// Returns false when the language has no registered grammar.
func NewTreeSitterParser(language string) (Parser, bool) {
	config, tsLang, ok := DefaultRegistry().Get(language)
	if !ok {
		return nil, false
	}
	return &treeSitterParser{config: config, lang: tsLang}, true
}

// ExtractEntities parses the source and walks the AST for declarations.
// A fresh sitter.Parser per call keeps this safe for concurrent use.
func (p *treeSitterParser) ExtractEntities(content []byte) ([]Entity, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", p.config.Name, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse %s source: nil tree", p.config.Name)
	}
	defer tree.Close()

	var entities []Entity
	p.walk(tree.RootNode(), content, "", &entities)
	return entities, nil
}

// walk visits nodes depth-first, carrying the enclosing class name so
// nested functions are attributed to their parent.
func (p *treeSitterParser) walk(n *sitter.Node, source []byte, parent string, out *[]Entity) {
	if n == nil {
		return
	}

	entityType, isEntity := p.classify(n.Type())
	nextParent := parent

	if isEntity {
		name := p.entityName(n, source)
		if name != "" {
			et := entityType
			// Functions nested in a class body are methods.
			if et == EntityFunction && parent != "" {
				et = EntityMethod
			}
			if et == EntityTypeDef {
				et = refineTypeDef(n, et)
			}
			*out = append(*out, Entity{
				Name:      name,
				Type:      et,
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
				Parent:    parent,
			})
			if et == EntityClass || et == EntityInterface {
				nextParent = name
			}
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		p.walk(n.Child(i), source, nextParent, out)
	}
}

// classify maps an AST node type to an entity type.
func (p *treeSitterParser) classify(nodeType string) (EntityType, bool) {
	for _, t := range p.config.FunctionTypes {
		if nodeType == t {
			return EntityFunction, true
		}
	}
	for _, t := range p.config.MethodTypes {
		if nodeType == t {
			return EntityMethod, true
		}
	}
	for _, t := range p.config.ClassTypes {
		if nodeType == t {
			return EntityClass, true
		}
	}
	for _, t := range p.config.InterfaceTypes {
		if nodeType == t {
			return EntityInterface, true
		}
	}
	for _, t := range p.config.TypeDefTypes {
		if nodeType == t {
			return EntityTypeDef, true
		}
	}
	return "", false
}

// refineTypeDef promotes a wrapped type declaration to class or
// interface when its body is a struct or interface type, as in Go's
// type_declaration > type_spec > interface_type.
func refineTypeDef(n *sitter.Node, fallback EntityType) EntityType {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "interface_type":
			return EntityInterface
		case "struct_type":
			return EntityClass
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			grandchild := child.Child(j)
			if grandchild == nil {
				continue
			}
			switch grandchild.Type() {
			case "interface_type":
				return EntityInterface
			case "struct_type":
				return EntityClass
			}
		}
	}
	return fallback
}

// entityName finds the declaration's name node: a direct child of one of
// the config's name types, or one level deeper for wrapped declarations
// like Go's type_declaration > type_spec > type_identifier.
func (p *treeSitterParser) entityName(n *sitter.Node, source []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && p.isNameType(child.Type()) {
			return child.Content(source)
		}
	}
	// One level deeper, e.g. type_declaration > type_spec > type_identifier.
	// Direct children are checked first so a method receiver's parameter
	// identifier never shadows the method name.
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || child.Type() == "parameter_list" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			grandchild := child.Child(j)
			if grandchild != nil && p.isNameType(grandchild.Type()) {
				return grandchild.Content(source)
			}
		}
	}
	return ""
}

func (p *treeSitterParser) isNameType(nodeType string) bool {
	for _, t := range p.config.NameTypes {
		if nodeType == t {
			return true
		}
	}
	return false
}
