package relocator

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/relocator/heal"
)

const supplierPage = `<html><body><input id="sup:123:name" aria-label="Supplier Name"></body></html>`

const taxPageV2 = `<html><body>
<form><label>Tax Country</label><select id="taxCountry_v2"></select><select id="currency"></select></form>
</body></html>`

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(&Config{DBPath: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func parseDoc(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestService_SupplierExample(t *testing.T) {
	// WHAT: aria-label and delimited id produce AriaLabel, IDPrefix, TagFallback.
	// WHY: the recorded-element example every other layer builds on.
	svc := testService(t)
	doc := parseDoc(t, supplierPage)

	snap, err := svc.SnapshotOf(doc, "//input")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	u := svc.Generate(snap)
	want := []string{
		"//input[@aria-label='Supplier Name']",
		"//*[starts-with(@id,'sup')]",
		"//input",
	}
	if got := u.Expressions(); !reflect.DeepEqual(got, want) {
		t.Errorf("candidates:\n got  %q\n want %q", got, want)
	}
	if key := svc.Key(snap); key != "id:sup" {
		t.Errorf("key: %q", key)
	}

	expr, err := svc.Create("", doc, firstElement(doc, "input"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if expr != svc.Prefix(u) || !strings.HasPrefix(expr, "resloc=") {
		t.Errorf("create: %q", expr)
	}
	if n, err := svc.Query(doc, expr); err != nil || n == nil || n.Data != "input" {
		t.Errorf("query: %v %v", n, err)
	}

	css, err := svc.Create("css", doc, firstElement(doc, "input"))
	if err != nil || !strings.HasPrefix(css, "css=") {
		t.Errorf("css create: %q %v", css, err)
	}
}

func TestService_HealThenCacheHit(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	doc := parseDoc(t, taxPageV2)

	var calls int
	svc.SetProposer(func(context.Context, *heal.FailureContext) (string, error) {
		calls++
		return "//*[starts-with(@id,'taxCountry')]", nil
	})
	req := heal.ResolveRequest{
		LogicalKey: "h:tax",
		Expression: "//select[@aria-label='Tax Country']",
		Root:       doc,
	}

	res, err := svc.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != heal.SourceHeal || res.Node == nil {
		t.Fatalf("first resolve: %+v", res)
	}

	res, err = svc.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if res.Source != heal.SourceCache || calls != 1 {
		t.Errorf("second resolve: source=%s calls=%d", res.Source, calls)
	}

	st, _ := svc.Stats(ctx)
	if st.Keys != 1 || st.Entries != 1 || st.Superseded != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestService_AmbiguousHealExhausts(t *testing.T) {
	svc := testService(t)
	svc.SetProposer(func(context.Context, *heal.FailureContext) (string, error) { return "//select", nil })

	_, err := svc.Heal(context.Background(), heal.Failure{
		LogicalKey: "k",
		Expression: "//select[@aria-label='Tax Country']",
		Root:       parseDoc(t, taxPageV2),
	})
	if !heal.IsRunFailure(err) {
		t.Fatalf("err: %v", err)
	}
	if cur, _ := svc.Current(context.Background(), "k"); cur != nil {
		t.Errorf("cache must stay empty, got %+v", cur)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.defaults()
	if cfg.DBPath != "relocator.db" || cfg.Scheme != "resloc" || cfg.Delimiters != ":" {
		t.Errorf("defaults: %+v", cfg)
	}
	if cfg.Heal.MaxRetries != 1 || cfg.Heal.ProposalTimeout != 30*time.Second {
		t.Errorf("heal defaults: %+v", cfg.Heal)
	}
	if cfg.Browser.Headless == nil || !*cfg.Browser.Headless {
		t.Error("browser should default to headless")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relocator.yaml")
	data := `
db_path: /tmp/loc.db
scheme: heal
delimiters: ":_"
heal:
  max_retries: -1
  proposal_timeout: 5s
browser:
  remote_url: ws://127.0.0.1:9222
  headless: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.defaults()
	if cfg.Scheme != "heal" || cfg.Delimiters != ":_" || cfg.Browser.RemoteURL != "ws://127.0.0.1:9222" {
		t.Errorf("config: %+v", cfg)
	}
	if *cfg.Browser.Headless {
		t.Error("headless: explicit false was overridden")
	}
	p := cfg.policy()
	if p.MaxRetries != 0 || p.ProposalTimeout != 5*time.Second {
		t.Errorf("policy: %+v", p)
	}
}

func TestNew_InvalidScheme(t *testing.T) {
	if _, err := New(&Config{DBPath: ":memory:", Scheme: "xpath"}, nil); err == nil {
		t.Error("the generic scheme must be refused")
	}
}

func firstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := firstElement(c, tag); f != nil {
			return f
		}
	}
	return nil
}
