package scope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cursor(t *testing.T, source, marker string) uint {
	t.Helper()
	idx := strings.Index(source, marker)
	require.NotEqual(t, -1, idx, "marker %q not found", marker)
	return uint(idx)
}

func TestAssignmentsAfterCursorAreNotVisible(t *testing.T) {
	source := `<?php
function run(int $count)
{
    $before = 1;
    /*|first*/
    $after = 2;
    /*|second*/
}
`

	assert.Equal(t, []string{"$count", "$before"}, VariablesInScope([]byte(source), cursor(t, source, "/*|first*/")))
	assert.Equal(t, []string{"$count", "$before", "$after"}, VariablesInScope([]byte(source), cursor(t, source, "/*|second*/")))
}

func TestMethodScope(t *testing.T) {
	source := `<?php
namespace App;

class Service
{
    private $notAVariable;

    public function handle(Request $request, string ...$tags)
    {
        /*|method*/
    }

    public static function make()
    {
        /*|static*/
    }
}

$outside = 1;
`

	assert.Equal(t, []string{"$this", "$request", "$tags"}, VariablesInScope([]byte(source), cursor(t, source, "/*|method*/")))
	assert.Empty(t, VariablesInScope([]byte(source), cursor(t, source, "/*|static*/")))
	assert.Empty(t, VariablesInScope([]byte(source), cursor(t, source, "$notAVariable")))
}

func TestControlStructuresAreWalkedUnconditionally(t *testing.T) {
	source := `<?php
function demo(array $rows)
{
    global $config;
    static $calls = 0;

    if ($rows) {
        $first = 1;
    } elseif (count($rows) > 2) {
        $second = 2;
    } else {
        [$a, [$b, $c]] = $rows;
    }

    switch ($first) {
        case 1:
            $fromCase = true;
            break;
        default:
            $fromDefault = false;
    }

    try {
        $tried = 1;
    } catch (\RuntimeException | \LogicException $e) {
        $caught = 1;
    } finally {
        $finally = 1;
    }

    while ($line = next($rows)) {
        $count ??= 0;
    }

    foreach ($rows as $key => $row) {
        /*|loop*/
    }
    /*|after*/
}
`

	before := []string{
		"$rows", "$config", "$calls", "$first", "$second", "$a", "$b", "$c",
		"$fromCase", "$fromDefault", "$tried", "$e", "$caught", "$finally", "$line", "$count",
	}

	assert.ElementsMatch(t, append(before, "$key", "$row"), VariablesInScope([]byte(source), cursor(t, source, "/*|loop*/")))
	assert.ElementsMatch(t, before, VariablesInScope([]byte(source), cursor(t, source, "/*|after*/")))
}

func TestLoopBodiesStayVisibleAfterTheLoop(t *testing.T) {
	source := `<?php
function collect(array $xs)
{
    foreach ($xs as $i => $x) {
        $inLoop = 1;
        /*|inside*/
    }
    while (true) {
        $inWhile = 1;
    }
    /*|after*/
}
`

	assert.Equal(t, []string{"$xs", "$i", "$x", "$inLoop"}, VariablesInScope([]byte(source), cursor(t, source, "/*|inside*/")))
	assert.Equal(t, []string{"$xs", "$inLoop", "$inWhile"}, VariablesInScope([]byte(source), cursor(t, source, "/*|after*/")))
}

func TestClosureScopes(t *testing.T) {
	source := `<?php
class Controller
{
    public function index(Request $request)
    {
        $outer = 1;
        $unused = 2;
        $callback = function (int $id) use ($outer, &$unknown) {
            $inner = 3;
            /*|closure*/
        };
        $mapped = array_map(fn ($item) => $item->name, []);
        $static = static function () {
            /*|static*/
        };
        $nested = function () use ($outer) {
            return fn ($deep) => $deep->value;
        };
    }
}
`

	assert.ElementsMatch(t,
		[]string{"$this", "$outer", "$unknown", "$id", "$inner"},
		VariablesInScope([]byte(source), cursor(t, source, "/*|closure*/")))

	assert.ElementsMatch(t,
		[]string{"$this", "$request", "$outer", "$unused", "$callback", "$item"},
		VariablesInScope([]byte(source), cursor(t, source, "$item->name")))

	assert.Empty(t, VariablesInScope([]byte(source), cursor(t, source, "/*|static*/")))

	assert.ElementsMatch(t,
		[]string{"$this", "$outer", "$deep"},
		VariablesInScope([]byte(source), cursor(t, source, "$deep->value")))
}

func TestTopLevelAndNamespaceBodies(t *testing.T) {
	source := `<?php
namespace App {
    $config = load();
    /*|namespace*/
}

namespace {
    $global = 1;
    /*|global*/
}
`

	assert.Equal(t, []string{"$config"}, VariablesInScope([]byte(source), cursor(t, source, "/*|namespace*/")))
	assert.Equal(t, []string{"$config", "$global"}, VariablesInScope([]byte(source), cursor(t, source, "/*|global*/")))
}

func TestVariablesInScopeOnBrokenSource(t *testing.T) {
	source := `<?php
function broken( {
    $value = 1;
`
	assert.NotPanics(t, func() {
		VariablesInScope([]byte(source), uint(len(source)))
	})
}
