package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBraceParserBracedLanguage(t *testing.T) {
	source := []byte(`public class Account {
    private long balance;

    public void deposit(long amount) {
        if (amount > 0) {
            balance += amount;
        }
    }

    public long getBalance() {
        return balance;
    }
}

interface Ledger {
    void record(String entry);
}
`)
	entities, err := NewBraceParser("java").ExtractEntities(source)
	require.NoError(t, err)

	byName := map[string]Entity{}
	for _, e := range entities {
		byName[e.Name] = e
	}

	account, ok := byName["Account"]
	require.True(t, ok)
	assert.Equal(t, EntityClass, account.Type)
	assert.Equal(t, 1, account.StartLine)
	assert.Equal(t, 13, account.EndLine)

	ledger, ok := byName["Ledger"]
	require.True(t, ok)
	assert.Equal(t, EntityInterface, ledger.Type)
}

func TestBraceParserIndentedLanguage(t *testing.T) {
	source := []byte(`import os

class Walker:
    def __init__(self, root):
        self.root = root

    def visit(self):
        for name in os.listdir(self.root):
            yield name

def main():
    w = Walker(".")
    for name in w.visit():
        print(name)
`)
	entities, err := NewBraceParser("perl").ExtractEntities(source)
	require.NoError(t, err)

	byName := map[string]Entity{}
	for _, e := range entities {
		byName[e.Name] = e
	}

	walker, ok := byName["Walker"]
	require.True(t, ok)
	assert.Equal(t, EntityClass, walker.Type)

	visit, ok := byName["visit"]
	require.True(t, ok)
	assert.Equal(t, EntityMethod, visit.Type)
	assert.Equal(t, "Walker", visit.Parent)

	mainFn, ok := byName["main"]
	require.True(t, ok)
	assert.Equal(t, EntityFunction, mainFn.Type)
	assert.Empty(t, mainFn.Parent)
}

func TestBraceParserIgnoresDelimitersInStringsAndComments(t *testing.T) {
	source := []byte(`fn render() {
    let open = "{";          // brace in string
    let tpl = "{{name}}";
    /* { comment brace */
    print(open, tpl);
}
`)
	entities, err := NewBraceParser("rust").ExtractEntities(source)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "render", entities[0].Name)
	assert.Equal(t, 1, entities[0].StartLine)
	assert.Equal(t, 6, entities[0].EndLine)
}
