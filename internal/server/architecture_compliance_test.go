package server

import (
	"go/ast"
	"go/parser"
	"go/token"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"testing"
)

// queueContract lists, for every route, the queue methods its handler may
// call. State changes go through exactly one queue operation so the gate and
// the lease mutex always apply.
var queueContract = map[string][]string{
	"GET /health":                            nil,
	"GET /v1/info":                           {"Config", "Info"},
	"POST /v1/blobs":                         {"Submit"},
	"GET /v1/jobs":                           {"ListJobs"},
	"POST /v1/jobs":                          nil,
	"POST /v1/leases/renew":                  {"Renew"},
	"POST /v1/leases/complete":               {"Complete"},
	"GET /v1/sessions/{id}":                  {"Session"},
	"GET /v1/sessions/{id}/events":           {"Watch"},
	"GET /v1/sessions/{id}/pending":          {"ListPending"},
	"POST /v1/sessions/{id}/lease":           {"Lease"},
	"GET /v1/sessions/{id}/results":          {"ListResults"},
	"GET /v1/sessions/{id}/results/download": {"ListResults", "Now"},
	"GET /v1/sessions/{id}/transcript":       {"Transcript"},
	"DELETE /v1/sessions/{id}":               {"Reap"},
}

// mutatingQueueMethods change queue state and must each own a route.
var mutatingQueueMethods = []string{"Submit", "Lease", "Renew", "Complete", "Reap"}

func TestRoutesMatchQueueContract(t *testing.T) {
	routes := registeredRoutes(t)
	handlers := serverHandlers(t)

	if got, want := slices.Sorted(maps.Keys(routes)), slices.Sorted(maps.Keys(queueContract)); !slices.Equal(got, want) {
		t.Fatalf("registered routes %v do not match the queue contract %v", got, want)
	}

	for pattern, handler := range routes {
		fn, ok := handlers[handler]
		if !ok {
			t.Fatalf("handler %q for %s not found", handler, pattern)
		}
		got := queueCalls(fn)
		if want := queueContract[pattern]; !slices.Equal(got, want) {
			t.Errorf("%s (%s) calls s.queue.%v, want %v", pattern, handler, got, want)
		}
	}
}

func TestMutatingQueueMethodsHaveOneRoute(t *testing.T) {
	owners := make(map[string][]string)
	for pattern, methods := range queueContract {
		for _, method := range methods {
			if slices.Contains(mutatingQueueMethods, method) {
				owners[method] = append(owners[method], pattern)
			}
		}
	}

	for _, method := range mutatingQueueMethods {
		if len(owners[method]) != 1 {
			t.Errorf("queue method %s is reachable from %v, want exactly one route", method, owners[method])
		}
	}
	for pattern, methods := range queueContract {
		mutations := 0
		for _, method := range methods {
			if slices.Contains(mutatingQueueMethods, method) {
				mutations++
			}
		}
		if mutations > 1 {
			t.Errorf("%s performs %d queue mutations", pattern, mutations)
		}
	}
}

var readmeRouteRow = regexp.MustCompile("(?m)^\\| (GET|POST|DELETE) \\| `([^`]+)`")

func TestReadmeDocumentsEveryRoute(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(serverPackageDir(t), "..", "..", "README.md"))
	if err != nil {
		t.Fatalf("read README.md: %v", err)
	}
	var documented []string
	for _, m := range readmeRouteRow.FindAllStringSubmatch(string(data), -1) {
		documented = append(documented, m[1]+" "+m[2])
	}

	want := append(slices.Collect(maps.Keys(queueContract)), "GET /metrics")
	slices.Sort(documented)
	slices.Sort(want)
	if !slices.Equal(documented, want) {
		t.Fatalf("README routes %v, server serves %v", documented, want)
	}
}

// registeredRoutes maps each mux pattern in routes.go to the handler it is
// bound to. promhttp's handler is not a Server method and is skipped.
func registeredRoutes(t *testing.T) map[string]string {
	t.Helper()

	file := parseServerFile(t, "routes.go")
	routes := make(map[string]string)
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) != 2 {
			return true
		}
		if sel, ok := call.Fun.(*ast.SelectorExpr); !ok || sel.Sel.Name != "HandleFunc" {
			return true
		}
		lit, ok := call.Args[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		pattern, err := strconv.Unquote(lit.Value)
		if err != nil {
			t.Fatalf("unquote %s: %v", lit.Value, err)
		}
		if handler, ok := serverMethod(call.Args[1]); ok {
			routes[pattern] = handler
		}
		return true
	})
	return routes
}

func serverHandlers(t *testing.T) map[string]*ast.FuncDecl {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(serverPackageDir(t), "handlers_*.go"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("glob handler files: %v (%d files)", err, len(paths))
	}
	out := make(map[string]*ast.FuncDecl)
	for _, path := range paths {
		for _, decl := range parseServerFile(t, filepath.Base(path)).Decls {
			if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv != nil {
				out[fn.Name.Name] = fn
			}
		}
	}
	return out
}

// queueCalls returns the sorted distinct methods fn invokes on s.queue.
func queueCalls(fn *ast.FuncDecl) []string {
	var calls []string
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		method, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if field, ok := method.X.(*ast.SelectorExpr); ok && field.Sel.Name == "queue" {
			if _, ok := serverMethod(field); ok {
				calls = append(calls, method.Sel.Name)
			}
		}
		return true
	})
	slices.Sort(calls)
	return slices.Compact(calls)
}

// serverMethod reports s.<name> selectors.
func serverMethod(expr ast.Expr) (string, bool) {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	recv, ok := sel.X.(*ast.Ident)
	if !ok || recv.Name != "s" {
		return "", false
	}
	return sel.Sel.Name, true
}

func parseServerFile(t *testing.T, name string) *ast.File {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), filepath.Join(serverPackageDir(t), name), nil, 0)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return file
}

func serverPackageDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(file)
}
