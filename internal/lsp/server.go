package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"go.lsp.dev/jsonrpc2"

	"github.com/jarredhawkins/drl-lsp/internal/cache"
	"github.com/jarredhawkins/drl-lsp/internal/index"
	"github.com/jarredhawkins/drl-lsp/internal/parser"
	"github.com/jarredhawkins/drl-lsp/internal/types"
	"github.com/jarredhawkins/drl-lsp/internal/watcher"
)

var log = commonlog.GetLogger("drl.lsp")

// DefaultValidationDelay is how long a document must stay unchanged
// before it is validated
const DefaultValidationDelay = 200 * time.Millisecond

// Version is reported in the initialize result
var Version = "0.1.0"

// Options configures the server
type Options struct {
	ValidationDelay time.Duration
}

// Server implements the LSP server
type Server struct {
	parser    *parser.Parser
	documents *DocumentStore
	debouncer *watcher.Debouncer

	// parseMu serializes parses so the cached base of an incremental
	// parse is always the one the pending edits were recorded against
	parseMu sync.Mutex

	mu   sync.Mutex
	conn jsonrpc2.Conn
	ctx  context.Context
	root string
}

// NewServer creates a new LSP server
func NewServer(p *parser.Parser, opts Options) *Server {
	if opts.ValidationDelay <= 0 {
		opts.ValidationDelay = DefaultValidationDelay
	}
	return &Server{
		parser:    p,
		documents: NewDocumentStore(),
		debouncer: watcher.NewDebouncer(opts.ValidationDelay),
		ctx:       context.Background(),
	}
}

// Serve starts the LSP server on the given reader/writer
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stream := jsonrpc2.NewStream(&readWriteCloser{in, out})
	conn := jsonrpc2.NewConn(stream)

	s.mu.Lock()
	s.conn = conn
	s.ctx = ctx
	s.mu.Unlock()

	conn.Go(ctx, s.handler)
	defer s.debouncer.Stop()

	select {
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-conn.Done():
		return conn.Err()
	}
}

// Root returns the workspace root sent with initialize
func (s *Server) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// FilesChanged drops cached results of files changed on disk. Open
// documents are owned by the editor and left alone.
func (s *Server) FilesChanged(changed, removed []string) {
	for _, paths := range [][]string{changed, removed} {
		for _, path := range paths {
			uri := pathToURI(path)
			if s.documents.IsOpen(uri) {
				continue
			}
			log.Debugf("dropping cached results for %s", path)
			s.parser.Close(uri)
		}
	}
}

func (s *Server) handler(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	log.Debugf("LSP request: %s", req.Method())

	switch req.Method() {
	case "initialize":
		return s.handleInitialize(ctx, reply, req)
	case "initialized":
		return reply(ctx, nil, nil)
	case "shutdown":
		s.debouncer.Stop()
		return reply(ctx, nil, nil)
	case "exit":
		return nil
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, reply, req)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, reply, req)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, reply, req)
	case "textDocument/didClose":
		return s.handleDidClose(ctx, reply, req)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(ctx, reply, req)
	case "textDocument/foldingRange":
		return s.handleFoldingRange(ctx, reply, req)
	case "textDocument/definition":
		return s.handleDefinition(ctx, reply, req)
	case "textDocument/references":
		return s.handleReferences(ctx, reply, req)
	case "textDocument/hover":
		return s.handleHover(ctx, reply, req)
	default:
		// Method not found
		return reply(ctx, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.MethodNotFound,
			Message: "method not supported: " + req.Method(),
		})
	}
}

func invalidParams(ctx context.Context, reply jsonrpc2.Replier, err error) error {
	return reply(ctx, nil, &jsonrpc2.Error{
		Code:    jsonrpc2.InvalidParams,
		Message: err.Error(),
	})
}

func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}
	s.mu.Lock()
	s.root = uriToPath(params.RootURI)
	s.mu.Unlock()

	var offered []PositionEncoding
	if general := params.Capabilities.General; general != nil {
		offered = general.PositionEncodings
	}
	enc := negotiateEncoding(offered)
	s.documents.SetEncoding(enc)
	log.Infof("position encoding: %s", enc)

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			PositionEncoding: enc,
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindIncremental,
				Save:      true,
			},
			DefinitionProvider:     true,
			ReferencesProvider:     true,
			HoverProvider:          true,
			DocumentSymbolProvider: true,
			FoldingRangeProvider:   true,
		},
		ServerInfo: &ServerInfo{
			Name:    "drl-lsp",
			Version: Version,
		},
	}
	return reply(ctx, result, nil)
}

func (s *Server) handleDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	doc := params.TextDocument
	s.documents.Open(doc.URI, doc.Version, doc.Text)
	s.scheduleValidation(doc.URI)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	uri := params.TextDocument.URI
	if !s.documents.Update(uri, params.TextDocument.Version, params.ContentChanges) {
		log.Warningf("change for unopened document %s", uri)
		return reply(ctx, nil, nil)
	}
	s.scheduleValidation(uri)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}
	if s.documents.IsOpen(params.TextDocument.URI) {
		s.scheduleValidation(params.TextDocument.URI)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	uri := params.TextDocument.URI
	s.debouncer.Cancel(uri)
	s.documents.Close(uri)
	s.parser.Close(uri)
	s.publish(uri, nil, []Diagnostic{})
	return reply(ctx, nil, nil)
}

// scheduleValidation replaces any pending validation of uri
func (s *Server) scheduleValidation(uri string) {
	s.debouncer.Schedule(uri, func() { s.validate(uri) })
}

// validate parses the current text of uri and publishes its diagnostics
func (s *Server) validate(uri string) {
	doc, res, ok := s.parse(uri)
	if !ok {
		return
	}
	version := doc.Version
	s.publish(uri, &version, diagnostics(res, s.positions(doc)))
}

// parse brings the parse of an open document up to date, passing the
// regions edited since the previous parse
func (s *Server) parse(uri string) (*cache.Document, *types.ParseResult, bool) {
	s.parseMu.Lock()
	defer s.parseMu.Unlock()

	doc, base, edits, ok := s.documents.TakeEdits(uri)
	if !ok {
		return nil, nil, false
	}
	start := time.Now()
	res := s.parser.ParseDocument(doc, base, edits)
	log.Debugf("parsed %s@%d in %s (%d edits, %d problems)", uri, doc.Version, time.Since(start), len(edits), len(res.Errors))
	return doc, res, true
}

// positions maps between the byte columns of doc and wire columns
func (s *Server) positions(doc *cache.Document) positions {
	return newPositions(doc.Lines(), s.documents.Encoding())
}

func (s *Server) publish(uri string, version *int, diags []Diagnostic) {
	s.mu.Lock()
	conn, ctx := s.conn, s.ctx
	s.mu.Unlock()
	if conn == nil {
		return
	}

	params := PublishDiagnosticsParams{URI: uri, Version: version, Diagnostics: diags}
	if err := conn.Notify(ctx, "textDocument/publishDiagnostics", params); err != nil {
		log.Errorf("publish diagnostics for %s: %s", uri, err)
	}
}

// diagnostics converts parse errors to LSP diagnostics
func diagnostics(res *types.ParseResult, pos positions) []Diagnostic {
	diags := make([]Diagnostic, 0, len(res.Errors))
	for _, e := range res.Errors {
		sev := DiagnosticSeverityError
		if e.Severity == types.SeverityWarning {
			sev = DiagnosticSeverityWarning
		}
		diags = append(diags, Diagnostic{
			Range:    pos.toRange(e.Range),
			Severity: sev,
			Code:     e.Code,
			Source:   "drl",
			Message:  e.Message,
		})
	}
	return diags
}

func (s *Server) handleDocumentSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DocumentSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	uri := params.TextDocument.URI
	doc, res, ok := s.parse(uri)
	if !ok {
		return reply(ctx, nil, nil)
	}
	idx := index.New(uri, res.AST)
	return reply(ctx, documentSymbols(idx.Outline(), s.positions(doc)), nil)
}

func documentSymbols(syms []*types.Symbol, pos positions) []DocumentSymbol {
	out := make([]DocumentSymbol, 0, len(syms))
	for _, sym := range syms {
		r := pos.toRange(sym.Range)
		ds := DocumentSymbol{
			Name:           sym.Name,
			Detail:         sym.Detail,
			Kind:           symbolKind(sym.Kind),
			Range:          r,
			SelectionRange: r,
		}
		if len(sym.Children) > 0 {
			ds.Children = documentSymbols(sym.Children, pos)
		}
		out = append(out, ds)
	}
	return out
}

func symbolKind(k types.SymbolKind) SymbolKind {
	switch k {
	case types.KindPackage:
		return SymbolKindPackage
	case types.KindImport:
		return SymbolKindModule
	case types.KindFunction:
		return SymbolKindFunction
	case types.KindRule:
		return SymbolKindEvent
	case types.KindQuery:
		return SymbolKindMethod
	case types.KindDeclaration:
		return SymbolKindClass
	case types.KindField:
		return SymbolKindField
	default:
		return SymbolKindVariable
	}
}

func (s *Server) handleFoldingRange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params FoldingRangeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	_, res, ok := s.parse(params.TextDocument.URI)
	if !ok {
		return reply(ctx, nil, nil)
	}
	return reply(ctx, foldingRanges(res.AST), nil)
}

// foldingRanges folds every declaration, multi-line pattern and block
// comment that spans more than one line
func foldingRanges(file *types.DroolsFile) []FoldingRange {
	out := []FoldingRange{}
	add := func(r types.Range, kind string) {
		if r.SpansMultipleLines() {
			out = append(out, FoldingRange{StartLine: uint32(r.Start.Line), EndLine: uint32(r.End.Line), Kind: kind})
		}
	}
	for _, n := range file.Nodes() {
		switch n.(type) {
		case *types.Rule, *types.Query, *types.Function, *types.Declaration:
			add(n.NodeRange(), "region")
		}
	}
	for _, p := range file.Patterns() {
		p.Walk(func(p *types.MultiLinePattern) bool {
			add(p.Range, "")
			return true
		})
	}
	for _, c := range file.Comments {
		add(c, "comment")
	}
	return out
}

func (s *Server) handleDefinition(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	uri := params.TextDocument.URI
	doc, res, ok := s.parse(uri)
	if !ok {
		return reply(ctx, nil, nil)
	}
	mapper := s.positions(doc)
	pos := mapper.fromPosition(params.Position)
	idx := index.New(uri, res.AST)

	if name := extractVariableAt(doc.Lines(), pos); name != "" {
		log.Debugf("definition request for %s at %s", name, pos)
		if sym := idx.FindBinding(name, pos); sym != nil {
			return reply(ctx, Location{URI: uri, Range: mapper.toRange(sym.Range)}, nil)
		}
		return reply(ctx, nil, nil)
	}

	word := extractWordAt(doc.Lines(), pos)
	if word == "" {
		return reply(ctx, nil, nil)
	}
	var locations []Location
	for _, sym := range idx.FindDefinitions(word) {
		switch sym.Kind {
		case types.KindFunction, types.KindGlobal, types.KindDeclaration, types.KindQuery:
			locations = append(locations, Location{URI: uri, Range: mapper.toRange(sym.Range)})
		}
	}
	switch len(locations) {
	case 0:
		return reply(ctx, nil, nil)
	case 1:
		return reply(ctx, locations[0], nil)
	default:
		return reply(ctx, locations, nil)
	}
}

func (s *Server) handleReferences(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params ReferenceParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	uri := params.TextDocument.URI
	doc, res, ok := s.parse(uri)
	if !ok {
		return reply(ctx, nil, nil)
	}
	mapper := s.positions(doc)
	pos := mapper.fromPosition(params.Position)
	name := extractVariableAt(doc.Lines(), pos)
	if name == "" {
		return reply(ctx, nil, nil)
	}

	idx := index.New(uri, res.AST)
	var decl *types.Range
	if sym := idx.FindBinding(name, pos); sym != nil {
		decl = &sym.Range
	}

	locations := []Location{}
	for _, r := range idx.FindReferences(doc.Lines(), name, pos) {
		if !params.Context.IncludeDeclaration && decl != nil && r == *decl {
			continue
		}
		locations = append(locations, Location{URI: uri, Range: mapper.toRange(r)})
	}
	return reply(ctx, locations, nil)
}

func (s *Server) handleHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return invalidParams(ctx, reply, err)
	}

	doc, res, ok := s.parse(params.TextDocument.URI)
	if !ok {
		return reply(ctx, nil, nil)
	}
	mapper := s.positions(doc)
	pos := mapper.fromPosition(params.Position)

	// scan the enclosing declaration only; its text alone decides the pairs
	lr := types.LineRange{Start: 0, End: len(doc.Lines()) - 1}
	for _, n := range res.AST.Nodes() {
		if r := n.NodeRange(); r.Lines().Contains(pos.Line) {
			lr = r.Lines()
			break
		}
	}

	pair, ok := s.parser.Brackets(doc, lr).MatchAt(pos)
	if !ok {
		return reply(ctx, nil, nil)
	}
	other := pair.Close
	if pos == pair.Close.Position {
		other = pair.Open
	}
	r := mapper.toRange(pair.Range())
	at := mapper.toPosition(other.Position)
	return reply(ctx, Hover{
		Contents: MarkupContent{
			Kind:  "markdown",
			Value: fmt.Sprintf("matching `%s` at %d:%d", other.Char, at.Line, at.Character),
		},
		Range: &r,
	}, nil)
}

// extractWordAt extracts the identifier under the cursor
func extractWordAt(lines []string, pos types.Position) string {
	if pos.Line < 0 || pos.Line >= len(lines) {
		return ""
	}
	lineText := lines[pos.Line]
	char := min(pos.Character, len(lineText))
	start := char
	for start > 0 && isWordChar(lineText[start-1]) {
		start--
	}
	end := char
	for end < len(lineText) && isWordChar(lineText[end]) {
		end++
	}
	return lineText[start:end]
}

// readWriteCloser wraps reader and writer into a ReadWriteCloser
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	if c, ok := rwc.Reader.(io.Closer); ok {
		_ = c.Close()
	}
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
