package lsp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"

	"github.com/jarredhawkins/drl-lsp/internal/cache"
	"github.com/jarredhawkins/drl-lsp/internal/lsp"
	"github.com/jarredhawkins/drl-lsp/internal/parser"
)

// ruleMissingEnd lacks the closing "end"; the last line is 14 bytes long
const ruleMissingEnd = "rule \"A\"\nwhen\n    $p : Person( age > 18 )\nthen\n    log( $p );"

type client struct {
	conn  jsonrpc2.Conn
	diags chan lsp.PublishDiagnosticsParams
}

func startServer(t *testing.T, delay time.Duration) (*client, *cache.Manager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverSide, clientSide := net.Pipe()

	mgr := cache.NewManager(cache.Config{})
	p := parser.New(mgr, parser.Options{EnableIncrementalParsing: true})
	srv := lsp.NewServer(p, lsp.Options{ValidationDelay: delay})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, serverSide, serverSide)
	}()

	c := &client{
		conn:  jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide)),
		diags: make(chan lsp.PublishDiagnosticsParams, 16),
	}
	c.conn.Go(ctx, func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() == "textDocument/publishDiagnostics" {
			var params lsp.PublishDiagnosticsParams
			if err := json.Unmarshal(req.Params(), &params); err == nil {
				c.diags <- params
			}
		}
		return reply(ctx, nil, nil)
	})

	t.Cleanup(func() {
		cancel()
		_ = c.conn.Close()
		<-done
	})
	return c, mgr
}

func (c *client) call(t *testing.T, method string, params, result any) {
	t.Helper()
	_, err := c.conn.Call(context.Background(), method, params, result)
	require.NoError(t, err)
}

func (c *client) notify(t *testing.T, method string, params any) {
	t.Helper()
	require.NoError(t, c.conn.Notify(context.Background(), method, params))
}

func (c *client) waitDiagnostics(t *testing.T) lsp.PublishDiagnosticsParams {
	t.Helper()
	select {
	case d := <-c.diags:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no diagnostics published")
		return lsp.PublishDiagnosticsParams{}
	}
}

func (c *client) open(t *testing.T, text string) {
	t.Helper()
	c.notify(t, "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{URI: uri, LanguageID: "drools", Version: 1, Text: text},
	})
}

func at(line, char uint32) lsp.TextDocumentPositionParams {
	return lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		Position:     lsp.Position{Line: line, Character: char},
	}
}

func TestServer_Initialize(t *testing.T) {
	t.Parallel()
	c, _ := startServer(t, 10*time.Millisecond)

	var result lsp.InitializeResult
	c.call(t, "initialize", lsp.InitializeParams{RootURI: "file:///workspace"}, &result)

	require.NotNil(t, result.Capabilities.TextDocumentSync)
	assert.Equal(t, lsp.TextDocumentSyncKindIncremental, result.Capabilities.TextDocumentSync.Change)
	assert.True(t, result.Capabilities.DocumentSymbolProvider)
	assert.True(t, result.Capabilities.FoldingRangeProvider)
	assert.True(t, result.Capabilities.HoverProvider)
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "drl-lsp", result.ServerInfo.Name)
	assert.Equal(t, lsp.PositionEncodingUTF16, result.Capabilities.PositionEncoding)

	_, err := c.conn.Call(context.Background(), "workspace/unknown", nil, nil)
	require.Error(t, err)
}

func TestServer_DiagnosticsFollowEdits(t *testing.T) {
	t.Parallel()
	c, mgr := startServer(t, 10*time.Millisecond)

	c.open(t, ruleMissingEnd)
	d := c.waitDiagnostics(t)
	assert.Equal(t, uri, d.URI)
	require.NotNil(t, d.Version)
	assert.Equal(t, 1, *d.Version)
	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, "missing-end", d.Diagnostics[0].Code)
	assert.Equal(t, lsp.DiagnosticSeverityError, d.Diagnostics[0].Severity)
	assert.Equal(t, "drl", d.Diagnostics[0].Source)

	// append the missing terminator
	c.notify(t, "textDocument/didChange", lsp.DidChangeTextDocumentParams{
		TextDocument: lsp.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{change(4, 14, 4, 14, "\nend")},
	})
	d = c.waitDiagnostics(t)
	require.NotNil(t, d.Version)
	assert.Equal(t, 2, *d.Version)
	assert.Empty(t, d.Diagnostics)
	assert.Equal(t, 1, mgr.Metrics().Entries)

	c.notify(t, "textDocument/didClose", lsp.DidCloseTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
	})
	d = c.waitDiagnostics(t)
	assert.Nil(t, d.Version)
	assert.Empty(t, d.Diagnostics)
	assert.Zero(t, mgr.Metrics().Entries)
}

func TestServer_ValidationIsDebounced(t *testing.T) {
	t.Parallel()
	const delay = 100 * time.Millisecond
	c, _ := startServer(t, delay)

	c.open(t, ruleMissingEnd)
	for v := 2; v <= 4; v++ {
		c.notify(t, "textDocument/didChange", lsp.DidChangeTextDocumentParams{
			TextDocument: lsp.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: uri},
				Version:                v,
			},
			ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: ruleMissingEnd + "\nend"}},
		})
	}

	d := c.waitDiagnostics(t)
	require.NotNil(t, d.Version)
	assert.Equal(t, 4, *d.Version)
	assert.Empty(t, d.Diagnostics)

	select {
	case extra := <-c.diags:
		t.Fatalf("superseded validation published for version %v", extra.Version)
	case <-time.After(3 * delay):
	}
}

func TestServer_Navigation(t *testing.T) {
	t.Parallel()
	c, _ := startServer(t, 10*time.Millisecond)
	c.open(t, ruleMissingEnd+"\nend")
	c.waitDiagnostics(t)

	t.Run("document symbols", func(t *testing.T) {
		var syms []lsp.DocumentSymbol
		c.call(t, "textDocument/documentSymbol", lsp.DocumentSymbolParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		}, &syms)
		require.Len(t, syms, 1)
		assert.Equal(t, "A", syms[0].Name)
		assert.Equal(t, lsp.SymbolKindEvent, syms[0].Kind)
		require.Len(t, syms[0].Children, 1)
		assert.Equal(t, "$p", syms[0].Children[0].Name)
		assert.Equal(t, "Person", syms[0].Children[0].Detail)
	})

	t.Run("folding ranges", func(t *testing.T) {
		var folds []lsp.FoldingRange
		c.call(t, "textDocument/foldingRange", lsp.FoldingRangeParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		}, &folds)
		assert.Equal(t, []lsp.FoldingRange{{StartLine: 0, EndLine: 5, Kind: "region"}}, folds)
	})

	t.Run("definition of a bound variable", func(t *testing.T) {
		var loc lsp.Location
		c.call(t, "textDocument/definition", at(4, 10), &loc)
		assert.Equal(t, uri, loc.URI)
		assert.Equal(t, lsp.Range{
			Start: lsp.Position{Line: 2, Character: 4},
			End:   lsp.Position{Line: 2, Character: 6},
		}, loc.Range)
	})

	t.Run("references", func(t *testing.T) {
		var locs []lsp.Location
		c.call(t, "textDocument/references", lsp.ReferenceParams{
			TextDocumentPositionParams: at(4, 10),
			Context:                    lsp.ReferenceContext{IncludeDeclaration: true},
		}, &locs)
		require.Len(t, locs, 2)
		assert.Equal(t, uint32(2), locs[0].Range.Start.Line)
		assert.Equal(t, lsp.Position{Line: 4, Character: 9}, locs[1].Range.Start)

		c.call(t, "textDocument/references", lsp.ReferenceParams{TextDocumentPositionParams: at(4, 10)}, &locs)
		require.Len(t, locs, 1)
		assert.Equal(t, uint32(4), locs[0].Range.Start.Line)
	})

	t.Run("hover on a bracket", func(t *testing.T) {
		var hover lsp.Hover
		c.call(t, "textDocument/hover", at(2, 15), &hover)
		assert.Equal(t, "matching `)` at 2:26", hover.Contents.Value)
		require.NotNil(t, hover.Range)
		assert.Equal(t, lsp.Range{
			Start: lsp.Position{Line: 2, Character: 15},
			End:   lsp.Position{Line: 2, Character: 27},
		}, *hover.Range)
	})
}

// accented is a complete rule with a two byte character before a bracket
const accented = "rule \"A\"\nwhen\n    $p : Person( name == \"\u00e9\" )\nthen\n    log( $p );\nend"

func TestServer_PositionEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		offered []lsp.PositionEncoding
		want    lsp.PositionEncoding
		close   uint32
	}{
		{name: "utf-16 by default", want: lsp.PositionEncodingUTF16, close: 29},
		{
			name:    "utf-8 when offered",
			offered: []lsp.PositionEncoding{lsp.PositionEncodingUTF8, lsp.PositionEncodingUTF16},
			want:    lsp.PositionEncodingUTF8,
			close:   30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := startServer(t, 10*time.Millisecond)

			params := lsp.InitializeParams{RootURI: "file:///workspace"}
			if tt.offered != nil {
				params.Capabilities.General = &lsp.GeneralClientCapabilities{PositionEncodings: tt.offered}
			}
			var result lsp.InitializeResult
			c.call(t, "initialize", params, &result)
			assert.Equal(t, tt.want, result.Capabilities.PositionEncoding)

			c.open(t, accented)
			d := c.waitDiagnostics(t)
			assert.Empty(t, d.Diagnostics)

			var hover lsp.Hover
			c.call(t, "textDocument/hover", at(2, 15), &hover)
			assert.Equal(t, fmt.Sprintf("matching `)` at 2:%d", tt.close), hover.Contents.Value)
			require.NotNil(t, hover.Range)
			assert.Equal(t, lsp.Position{Line: 2, Character: tt.close + 1}, hover.Range.End)

			c.call(t, "textDocument/hover", at(2, tt.close), &hover)
			assert.Equal(t, "matching `(` at 2:15", hover.Contents.Value)
		})
	}
}

func TestServer_FilesChangedDropsClosedDocuments(t *testing.T) {
	t.Parallel()

	mgr := cache.NewManager(cache.Config{})
	p := parser.New(mgr, parser.Options{})
	srv := lsp.NewServer(p, lsp.Options{})

	p.ParseDocument(cache.NewDocument("file:///ws/a.drl", 0, ruleMissingEnd), 0, nil)
	require.Equal(t, 1, mgr.Metrics().Entries)

	srv.FilesChanged(nil, []string{"/ws/a.drl"})
	assert.Zero(t, mgr.Metrics().Entries)
}
