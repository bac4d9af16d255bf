package rpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/shopware/phpls/internal/resolver"
	"github.com/shopware/phpls/internal/stubs"
	treesitterhelper "github.com/shopware/phpls/internal/tree_sitter_helper"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const cartFile = "/virtual/src/Cart.php"

const cartSource = `<?php
namespace Shop;

use Shop\Model\Item;

interface Priced
{
    public function price(): int;
}

abstract class Base implements Priced
{
    protected const CURRENCY = 'EUR';

    private int $secret = 0;

    protected array $items = [];

    public function price(): int
    {
        return 0;
    }

    private function hidden(): void
    {
    }
}

final class Cart extends Base
{
    public function add(Item $item, int $qty = 1): static
    {
        $total = $this->price();
        return $this;
    }
}

function cart(): Cart
{
    return new Cart();
}
`

const itemSource = `<?php
namespace Shop\Model;

class Item
{
}
`

func startServer(t *testing.T) *jsonrpc2.Conn {
	t.Helper()

	files := resolver.NewOpenFiles()
	r := resolver.New(resolver.WithSources(files), resolver.WithStubs(stubs.Builtin()))
	server := NewServer(r, files)

	serverSide, clientSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Start(serverSide, serverSide)
	}()

	noop := jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
		return nil, nil
	})
	client := jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}), noop)

	t.Cleanup(func() {
		_ = client.Close()
		<-done
		_ = serverSide.Close()
	})
	return client
}

func open(t *testing.T, client *jsonrpc2.Conn, fileID, text string) {
	t.Helper()
	require.NoError(t, client.Call(context.Background(), "phpls/didOpen", DocumentParams{FileID: fileID, Text: text}, nil))
}

func offsetOf(t *testing.T, marker string) *uint {
	t.Helper()
	index := strings.Index(cartSource, marker)
	require.GreaterOrEqual(t, index, 0, marker)
	offset := uint(index)
	return &offset
}

func openShop(t *testing.T) *jsonrpc2.Conn {
	client := startServer(t)
	open(t, client, "/virtual/src/Model/Item.php", itemSource)
	open(t, client, cartFile, cartSource)
	return client
}

func TestResolveClass(t *testing.T) {
	client := openShop(t)
	ctx := context.Background()

	var info *ClassInfo
	require.NoError(t, client.Call(ctx, "phpls/resolveClass", NameParams{FileID: cartFile, Name: "Item"}, &info))
	require.NotNil(t, info)
	assert.Equal(t, "Shop\\Model\\Item", info.FQN)
	assert.Equal(t, "class", info.Kind)
	assert.Equal(t, "/virtual/src/Model/Item.php", info.File)

	info = nil
	require.NoError(t, client.Call(ctx, "phpls/resolveClass", NameParams{FileID: cartFile, Name: "Cart"}, &info))
	require.NotNil(t, info)
	assert.Equal(t, "Shop\\Base", info.Parent)
	assert.True(t, info.Final)

	info = nil
	require.NoError(t, client.Call(ctx, "phpls/resolveClass", NameParams{FileID: cartFile, Name: "\\RuntimeException"}, &info))
	require.NotNil(t, info, "standard classes come from the stubs")

	info = nil
	require.NoError(t, client.Call(ctx, "phpls/resolveClass", NameParams{FileID: cartFile, Name: "Missing"}, &info))
	assert.Nil(t, info)
}

func TestResolveFunction(t *testing.T) {
	client := openShop(t)

	var info *FunctionInfo
	require.NoError(t, client.Call(context.Background(), "phpls/resolveFunction", NameParams{FileID: cartFile, Name: "cart"}, &info))
	require.NotNil(t, info)
	assert.Equal(t, "Shop\\cart", info.FQN)
	assert.Equal(t, "Cart", info.ReturnType)
	assert.Empty(t, info.Parameters)

	info = nil
	require.NoError(t, client.Call(context.Background(), "phpls/resolveFunction", NameParams{FileID: cartFile, Name: "strlen"}, &info))
	require.NotNil(t, info, "global functions are the fallback of unqualified calls")
	assert.Equal(t, "int", info.ReturnType)
}

func memberNames(result *MembersResult) []string {
	names := make([]string, 0, len(result.Members))
	for _, member := range result.Members {
		names = append(names, member.Name)
	}
	return names
}

func TestMembers(t *testing.T) {
	client := openShop(t)
	ctx := context.Background()

	var result *MembersResult
	require.NoError(t, client.Call(ctx, "phpls/members", MembersParams{
		NameParams: NameParams{FileID: cartFile, Name: "Cart"},
		Receiver:   "$this",
	}, &result))
	require.NotNil(t, result)

	assert.Equal(t, "Shop\\Cart", result.Class.FQN)
	assert.Contains(t, result.Ancestors, "Shop\\Base")
	assert.Contains(t, result.Ancestors, "Shop\\Priced")
	assert.ElementsMatch(t, []string{"CURRENCY", "$items", "add", "price"}, memberNames(result))

	for _, member := range result.Members {
		switch member.Name {
		case "add":
			assert.Equal(t, "Shop\\Cart", member.DeclaringClass)
			assert.False(t, member.Inherited)
			require.Len(t, member.Parameters, 2)
			assert.Equal(t, "$qty", member.Parameters[1].Name)
			assert.True(t, member.Parameters[1].Optional)
		case "price":
			assert.Equal(t, "Shop\\Base", member.DeclaringClass)
			assert.True(t, member.Inherited)
		}
	}

	result = nil
	require.NoError(t, client.Call(ctx, "phpls/members", MembersParams{
		NameParams: NameParams{FileID: cartFile, Name: "Cart"},
	}, &result))
	require.NotNil(t, result)
	assert.ElementsMatch(t, []string{"add", "price"}, memberNames(result))

	result = nil
	require.NoError(t, client.Call(ctx, "phpls/members", MembersParams{
		NameParams: NameParams{FileID: cartFile, Name: "Missing"},
	}, &result))
	assert.Nil(t, result)
}

func TestVariablesInScope(t *testing.T) {
	client := openShop(t)

	var names []string
	require.NoError(t, client.Call(context.Background(), "phpls/variablesInScope", PositionParams{
		FileID: cartFile,
		Offset: offsetOf(t, "return $this"),
	}, &names))
	assert.ElementsMatch(t, []string{"$this", "$item", "$qty", "$total"}, names)

	names = nil
	require.NoError(t, client.Call(context.Background(), "phpls/variablesInScope", PositionParams{
		FileID:   cartFile,
		Position: &treesitterhelper.Position{Line: 33, Character: 8},
	}, &names))
	assert.ElementsMatch(t, []string{"$this", "$item", "$qty", "$total"}, names)

	// the assignment is not visible before it starts
	before := *offsetOf(t, "$total =") - 1
	names = nil
	require.NoError(t, client.Call(context.Background(), "phpls/variablesInScope", PositionParams{
		FileID: cartFile,
		Offset: &before,
	}, &names))
	assert.ElementsMatch(t, []string{"$this", "$item", "$qty"}, names)
}

func TestVariableTypes(t *testing.T) {
	client := openShop(t)

	var result VariableTypesResult
	require.NoError(t, client.Call(context.Background(), "phpls/variableTypes", VariableParams{
		PositionParams: PositionParams{FileID: cartFile, Offset: offsetOf(t, "return $this")},
		Variable:       "$item",
	}, &result))
	require.Len(t, result.Classes, 1)
	assert.Equal(t, "Shop\\Model\\Item", result.Classes[0].FQN)
	assert.NotEmpty(t, result.Types)

	result = VariableTypesResult{}
	require.NoError(t, client.Call(context.Background(), "phpls/variableTypes", VariableParams{
		PositionParams: PositionParams{FileID: cartFile, Offset: offsetOf(t, "return $this")},
		Variable:       "$this",
	}, &result))
	require.Len(t, result.Classes, 1)
	assert.Equal(t, "Shop\\Cart", result.Classes[0].FQN)
}

func TestTypeHintToDeclarations(t *testing.T) {
	client := openShop(t)

	var classes []ClassInfo
	require.NoError(t, client.Call(context.Background(), "phpls/typeHintToDeclarations", TypeHintParams{
		FileID:   cartFile,
		TypeHint: "?Item|static|int",
		Class:    "Cart",
	}, &classes))

	require.Len(t, classes, 2)
	assert.Equal(t, "Shop\\Model\\Item", classes[0].FQN)
	assert.Equal(t, "Shop\\Cart", classes[1].FQN)
}

func TestStatusAndClose(t *testing.T) {
	client := openShop(t)
	ctx := context.Background()

	var status StatusResult
	require.NoError(t, client.Call(ctx, "phpls/status", nil, &status))
	assert.GreaterOrEqual(t, status.CachedFiles, 2)
	assert.GreaterOrEqual(t, status.IndexedClasses, 4)

	require.NoError(t, client.Call(ctx, "phpls/didClose", DocumentParams{FileID: cartFile}, nil))

	var names []string
	err := client.Call(ctx, "phpls/variablesInScope", PositionParams{FileID: cartFile, Offset: offsetOf(t, "$total")}, &names)
	assertCode(t, err, jsonrpc2.CodeInvalidParams)
}

func assertCode(t *testing.T, err error, code int64) {
	t.Helper()

	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "expected a JSON-RPC error, got %v", err)
	assert.Equal(t, code, rpcErr.Code)
}

func TestRequestErrors(t *testing.T) {
	client := openShop(t)
	ctx := context.Background()

	assertCode(t, client.Call(ctx, "phpls/unknown", nil, nil), jsonrpc2.CodeMethodNotFound)
	assertCode(t, client.Call(ctx, "phpls/resolveClass", nil, nil), jsonrpc2.CodeInvalidParams)
	assertCode(t, client.Call(ctx, "phpls/resolveClass", []int{1}, nil), jsonrpc2.CodeInvalidParams)
	assertCode(t, client.Call(ctx, "phpls/variablesInScope", PositionParams{FileID: cartFile}, nil), jsonrpc2.CodeInvalidParams)

	require.NoError(t, client.Notify(ctx, "phpls/somethingElse", nil))
	require.NoError(t, client.Call(ctx, "shutdown", nil, nil))
}
