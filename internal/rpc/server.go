// Package rpc exposes the resolution core over JSON-RPC 2.0 with
// Content-Length framing, for editor plugins and debugging tools.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/shopware/phpls/internal/inheritance"
	"github.com/shopware/phpls/internal/metrics"
	"github.com/shopware/phpls/internal/php"
	"github.com/shopware/phpls/internal/resolver"
	"github.com/shopware/phpls/internal/scope"
	treesitterhelper "github.com/shopware/phpls/internal/tree_sitter_helper"
	"github.com/sourcegraph/jsonrpc2"
)

// DocumentParams opens or changes a buffer.
type DocumentParams struct {
	FileID string `json:"fileId"`
	Text   string `json:"text,omitempty"`
}

// NameParams names a class or function as written in FileID.
type NameParams struct {
	FileID string `json:"fileId"`
	Name   string `json:"name"`
}

type MembersParams struct {
	NameParams
	// Receiver selects the perspective: "$this", "self", "static", "parent"
	// or anything else for external access.
	Receiver     string `json:"receiver,omitempty"`
	StaticOnly   bool   `json:"staticOnly,omitempty"`
	IncludeMagic bool   `json:"includeMagic,omitempty"`
}

// PositionParams points into a file, either by line and column or by byte
// offset.
type PositionParams struct {
	FileID   string                     `json:"fileId"`
	Position *treesitterhelper.Position `json:"position,omitempty"`
	Offset   *uint                      `json:"offset,omitempty"`
}

type VariableParams struct {
	PositionParams
	Variable string `json:"variable"`
}

type TypeHintParams struct {
	FileID   string `json:"fileId"`
	TypeHint string `json:"typeHint"`
	// Class is the class self and static refer to, if any.
	Class string `json:"class,omitempty"`
}

type VariableTypesResult struct {
	Types   []string    `json:"types"`
	Classes []ClassInfo `json:"classes"`
}

type StatusResult struct {
	IndexedClasses int `json:"indexedClasses"`
	CachedFiles    int `json:"cachedFiles"`
}

// Server answers requests against one resolver.
type Server struct {
	resolver *resolver.Resolver
	files    *resolver.OpenFiles
	conn     *jsonrpc2.Conn
}

// NewServer creates a server. Buffers sent by the client are kept in files,
// which should be the source provider of r.
func NewServer(r *resolver.Resolver, files *resolver.OpenFiles) *Server {
	return &Server{resolver: r, files: files}
}

// Start serves the connection on in and out until the client disconnects or
// sends exit.
func (s *Server) Start(in io.Reader, out io.Writer) error {
	stream := jsonrpc2.NewBufferedStream(rwc{in, out}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(s.handle))
	s.conn = conn

	<-conn.DisconnectNotify()
	return nil
}

type rwc struct {
	io.Reader
	io.Writer
}

func (rwc) Close() error {
	return nil
}

var errMissingParams = &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}

func decode(req *jsonrpc2.Request, v any) error {
	// clients encode absent params as null
	if req.Params == nil || bytes.Equal(bytes.TrimSpace(*req.Params), []byte("null")) {
		return errMissingParams
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	start := time.Now()
	defer func() {
		metrics.RPCRequests.WithLabelValues(req.Method).Inc()
		metrics.RPCDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}()

	switch req.Method {
	case "exit":
		if err := conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
			log.Printf("error closing connection: %v", err)
		}
		return nil, nil

	case "shutdown":
		return nil, nil

	case "phpls/status":
		return StatusResult{
			IndexedClasses: s.resolver.Index.Len(),
			CachedFiles:    len(s.resolver.Files.Files()),
		}, nil

	case "phpls/didOpen", "phpls/didChange":
		var params DocumentParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		s.files.Open(params.FileID, []byte(params.Text))
		s.resolver.Update(params.FileID, []byte(params.Text))
		return nil, nil

	case "phpls/didClose":
		var params DocumentParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		s.files.Close(params.FileID)
		s.resolver.Close(params.FileID)
		return nil, nil

	case "phpls/resolveClass":
		var params NameParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		return DescribeClass(s.resolver.Context(params.FileID).LoadClass(params.Name)), nil

	case "phpls/resolveFunction":
		var params NameParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		return DescribeFunction(s.resolver.Context(params.FileID).LoadFunction(params.Name)), nil

	case "phpls/members":
		var params MembersParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		return s.members(params), nil

	case "phpls/variablesInScope":
		var params PositionParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		source, offset, err := s.locate(params)
		if err != nil {
			return nil, err
		}
		names := scope.VariablesInScope(source, offset)
		if names == nil {
			names = []string{}
		}
		return names, nil

	case "phpls/variableTypes":
		var params VariableParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		source, offset, err := s.locate(params.PositionParams)
		if err != nil {
			return nil, err
		}
		env := s.resolver.Context(params.FileID)
		types := scope.TypeStrings(source, offset, params.Variable, env)
		if types == nil {
			types = []string{}
		}
		return VariableTypesResult{
			Types:   types,
			Classes: DescribeClasses(scope.VariableTypes(source, offset, params.Variable, env)),
		}, nil

	case "phpls/typeHintToDeclarations":
		var params TypeHintParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		file := s.resolver.Context(params.FileID)
		var current *php.Declaration
		if params.Class != "" {
			current = file.LoadClass(params.Class)
		}
		return DescribeClasses(resolver.TypeHintToDeclarations(params.TypeHint, current, file.Declarations(), file)), nil

	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not implemented: " + req.Method}
	}
}

func (s *Server) members(params MembersParams) *MembersResult {
	decl := s.resolver.Context(params.FileID).LoadClass(params.Name)
	return ClassMembers(s.resolver, decl, inheritance.Filter{
		Access:       inheritance.ParseAccess(params.Receiver),
		StaticOnly:   params.StaticOnly,
		IncludeMagic: params.IncludeMagic,
	})
}

// locate returns the text of the file and the byte offset params point at.
func (s *Server) locate(params PositionParams) ([]byte, uint, error) {
	source, ok := s.resolver.Source(params.FileID)
	if !ok {
		return nil, 0, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "unknown file " + params.FileID}
	}

	switch {
	case params.Offset != nil:
		return source, min(*params.Offset, uint(len(source))), nil
	case params.Position != nil:
		offset, ok := treesitterhelper.OffsetAt(source, *params.Position)
		if !ok {
			return nil, 0, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "position outside of file"}
		}
		return source, offset, nil
	default:
		return nil, 0, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "either position or offset is required"}
	}
}
