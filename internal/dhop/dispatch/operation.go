package dispatch

// Operation enumerates everything dhop can do with the store.
type Operation int

const (
	OpNone Operation = iota
	OpGo
	OpSet
	OpForget
	OpMark
	OpRecall
	OpPath
	OpPush
	OpPop
	OpList
	OpCopy
	OpMove
)

var operationNames = map[Operation]string{
	OpGo:     "go",
	OpSet:    "set",
	OpForget: "forget",
	OpMark:   "mark",
	OpRecall: "recall",
	OpPath:   "path",
	OpPush:   "push",
	OpPop:    "pop",
	OpList:   "list",
	OpCopy:   "cp",
	OpMove:   "mv",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "none"
}

// Command binds the words that select an operation. The first word is canonical.
type Command struct {
	Op    Operation
	Words []string
}

// Commands is the fixed command table.
var Commands = []Command{
	{Op: OpGo, Words: []string{"go"}},
	{Op: OpSet, Words: []string{"set", "add"}},
	{Op: OpForget, Words: []string{"forget", "delete", "remove", "unset"}},
	{Op: OpMark, Words: []string{"mark"}},
	{Op: OpRecall, Words: []string{"recall"}},
	{Op: OpPath, Words: []string{"path", "resolve"}},
	{Op: OpPush, Words: []string{"push"}},
	{Op: OpPop, Words: []string{"pop"}},
	{Op: OpList, Words: []string{"list"}},
	{Op: OpCopy, Words: []string{"cp"}},
	{Op: OpMove, Words: []string{"mv"}},
}

// CLIWords are handled by the command-line layer rather than the dispatcher but
// still cannot be used as location names.
var CLIWords = []string{"help", "prune-backups"}

var wordTable = func() map[string]Operation {
	table := make(map[string]Operation)
	for _, cmd := range Commands {
		for _, word := range cmd.Words {
			table[word] = cmd.Op
		}
	}
	return table
}()

// Lookup returns the operation selected by word.
func Lookup(word string) (Operation, bool) {
	op, ok := wordTable[word]
	return op, ok
}

// ReservedWords returns every word that selects a command.
func ReservedWords() []string {
	words := make([]string, 0, len(wordTable)+len(CLIWords))
	for _, cmd := range Commands {
		words = append(words, cmd.Words...)
	}
	return append(words, CLIWords...)
}
