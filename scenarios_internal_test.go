// White-box companions to scenarios_test.go: hierarchy emergence and
// alphabet uniqueness need to look at the graph behind the engine.
package melvin

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/port"
)

func feedRaw(t *testing.T, e *Engine, data string) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, port.WriteFrame(&buf, &port.Frame{PortID: 1, Data: []byte(data)}))
	e.UniversalInputWrite(buf.Bytes())

	processed, err := e.ProcessInput()
	require.NoError(t, err)
	require.True(t, processed)
}

func TestScenarioD_HierarchyEmergesFromRepeatedAlternation(t *testing.T) {
	e := Create("/knowledge.mel", WithFilesystem(afero.NewMemMapFs()))
	for _, word := range []string{"cat", "dog", "cat", "dog", "cat", "dog"} {
		feedRaw(t, e, word)
	}

	nodes := e.graph.Nodes()
	combined := findCombined(nodes)
	require.NotNil(t, combined, "six alternating frames must produce at least one combined node")
	require.GreaterOrEqual(t, combined.AbstractionLevel, uint32(1))
	require.True(t, isConcatenation(combined, nodes),
		"a combined payload is the concatenation of two lower-level payloads")
	require.NoError(t, e.graph.Validate())
}

func TestScenarioE_AlphabetStaysUnique(t *testing.T) {
	e := Create("/knowledge.mel", WithFilesystem(afero.NewMemMapFs()))
	frames := []string{"red apple", "green apple", "blue apple", "yellow apple", "apple"}
	for _, frame := range frames {
		feedRaw(t, e, frame)
	}

	// Every distinct byte across all frames is represented by exactly one
	// raw single-byte node: re-feeding "apple" after the colors never
	// duplicates the 'a', 'p', 'l', 'e' nodes.
	counts := map[byte]int{}
	for _, n := range e.graph.Nodes() {
		if len(n.Payload) == 1 && n.AbstractionLevel == 0 {
			counts[n.Payload[0]]++
		}
	}
	for _, b := range []byte("apple") {
		require.Equal(t, 1, counts[b], "byte %q must have exactly one raw node", b)
	}
	for b, c := range counts {
		require.Equal(t, 1, c, "byte %q duplicated", b)
	}
	require.NoError(t, e.graph.Validate())
}

func findCombined(nodes []*graph.Node) *graph.Node {
	for _, n := range nodes {
		if n.AbstractionLevel >= 1 {
			return n
		}
	}

	return nil
}

func isConcatenation(combined *graph.Node, nodes []*graph.Node) bool {
	for _, a := range nodes {
		if a == combined || a.Blank() {
			continue
		}
		if !bytes.HasPrefix(combined.Payload, a.Payload) {
			continue
		}
		rest := combined.Payload[len(a.Payload):]
		for _, b := range nodes {
			if b == combined || b.Blank() {
				continue
			}
			if bytes.Equal(rest, b.Payload) {
				return true
			}
		}
	}

	return false
}
