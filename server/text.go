package server

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sutra-engine/sutra-storage/namespace"
	"github.com/sutra-engine/sutra-storage/sterr"
)

// parseTextCommand turns one line of the reserved-verb text protocol
// ("remember", "find", "list") into a Request. Anything else is
// rejected without touching any namespace state.
func parseTextCommand(line string) (Request, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Request{}, sterr.New(sterr.ProtocolError, "empty command")
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "remember":
		content := strings.TrimPrefix(rest, "that ")
		if content == "" {
			return Request{}, sterr.New(sterr.ProtocolError, "remember requires text to learn")
		}
		return Request{
			Type:      "LearnConceptV2",
			Namespace: namespace.Default,
			Content:   content,
			Options:   DefaultLearnOptions(),
		}, nil

	case "find":
		if rest == "" {
			return Request{}, sterr.New(sterr.ProtocolError, "find requires a concept id")
		}
		return Request{
			Type:      "QueryConcept",
			Namespace: namespace.Default,
			ConceptID: rest,
		}, nil

	case "list":
		limit := uint32(20)
		if rest != "" {
			if n, err := strconv.Atoi(rest); err == nil && n > 0 {
				limit = uint32(n)
			}
		}
		return Request{
			Type:      "ListRecent",
			Namespace: namespace.Default,
			Limit:     limit,
		}, nil

	default:
		return Request{}, sterr.New(sterr.ProtocolError, "command not understood: try 'remember <text>', 'find <id>', or 'list'")
	}
}

// ParseCommand parses one line of the text protocol into a Request. It
// is exported so a local console can dispatch commands the same way a
// remote text-protocol client would, without duplicating the verb
// table.
func ParseCommand(line string) (Request, error) {
	return parseTextCommand(line)
}

// encodeTextResponse renders resp as the human-readable JSON line the
// text protocol replies with.
func encodeTextResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}
