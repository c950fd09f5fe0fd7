package engine

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/interrupt"
	"github.com/soyunomas/dupescan/internal/logging"
	"github.com/soyunomas/dupescan/internal/progress"
	"github.com/spf13/afero"
)

type recordingSink struct {
	mu      sync.Mutex
	updates map[progress.Phase][][2]int64
}

func (r *recordingSink) Update(phase progress.Phase, pos, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updates == nil {
		r.updates = make(map[progress.Phase][][2]int64)
	}
	r.updates[phase] = append(r.updates[phase], [2]int64{pos, total})
}

func (r *recordingSink) last(phase progress.Phase) [2]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.updates[phase]
	if len(u) == 0 {
		return [2]int64{-1, -1}
	}
	return u[len(u)-1]
}

type memTree struct {
	fs   afero.Fs
	refs []*entities.FileRef
}

func newMemTree() *memTree {
	return &memTree{fs: afero.NewMemMapFs()}
}

func (m *memTree) add(t *testing.T, path string, data []byte) *entities.FileRef {
	t.Helper()
	if err := afero.WriteFile(m.fs, path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	ref := &entities.FileRef{Path: path, Size: int64(len(data))}
	m.refs = append(m.refs, ref)
	return ref
}

func newTestEngine(t *testing.T, fs afero.Fs, workers int, sample int64, tok *interrupt.Token, sink progress.Sink) *Engine {
	t.Helper()
	e, err := New(fs, Config{
		Workers: workers,
		Hash:    hasher.Options{Algorithm: hasher.XXHash, SampleSize: sample},
	}, tok, sink, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func runPipeline(e *Engine, refs []*entities.FileRef) entities.DuplicateSet {
	ctx := context.Background()
	return Aggregate(e.HashBuckets(ctx, e.PartitionBySize(ctx, refs)), logging.Discard())
}

// groupPaths devuelve los grupos como listas de rutas ordenadas, para comparar multiconjuntos.
func groupPaths(set entities.DuplicateSet) [][]string {
	var out [][]string
	for _, g := range set {
		var paths []string
		for _, f := range g.Files {
			paths = append(paths, f.Path)
		}
		sort.Strings(paths)
		out = append(out, paths)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func TestNewRejectsNegativeWorkers(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), Config{Workers: -1, Hash: hasher.Options{SampleSize: 1}}, nil, nil, logging.Discard())
	if err == nil {
		t.Fatal("esperaba error con workers negativos")
	}
}

func TestNewRejectsZeroSample(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), Config{}, nil, nil, logging.Discard())
	if err == nil {
		t.Fatal("esperaba error con SampleSize 0")
	}
}

func TestPartitionBySize(t *testing.T) {
	m := newMemTree()
	m.add(t, "/a", []byte("1234"))
	m.add(t, "/b", []byte("abcd"))
	m.add(t, "/c", []byte("12345"))
	m.add(t, "/z1", nil)
	m.add(t, "/z2", nil)

	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			e := newTestEngine(t, m.fs, workers, 8192, nil, nil)
			buckets := e.PartitionBySize(context.Background(), m.refs)
			if len(buckets) != 1 {
				t.Fatalf("esperaba 1 bucket, obtuve %d", len(buckets))
			}
			g, ok := buckets[4]
			if !ok || g.Count != 2 || len(g.Files) != 2 {
				t.Fatalf("bucket de 4 bytes incorrecto: %+v", g)
			}
		})
	}
}

func TestPartitionDropsVanishedAndResized(t *testing.T) {
	m := newMemTree()
	m.add(t, "/a", []byte("1234"))
	m.add(t, "/b", []byte("abcd"))
	m.add(t, "/c", []byte("wxyz"))
	gone := m.add(t, "/gone", []byte("gone"))
	changed := m.add(t, "/changed", []byte("chan"))

	if err := m.fs.Remove(gone.Path); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(m.fs, changed.Path, []byte("changed!"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, m.fs, 4, 8192, nil, nil)
	buckets := e.PartitionBySize(context.Background(), m.refs)
	if g := buckets[4]; g == nil || g.Count != 3 {
		t.Fatalf("esperaba 3 archivos en el bucket de 4 bytes: %+v", g)
	}
}

func TestPartitionCancelled(t *testing.T) {
	m := newMemTree()
	m.add(t, "/a", []byte("1234"))
	m.add(t, "/b", []byte("1234"))

	e := newTestEngine(t, m.fs, 2, 8192, interrupt.Cancelled(), nil)
	if got := e.PartitionBySize(context.Background(), m.refs); len(got) != 0 {
		t.Fatalf("token cancelado: esperaba 0 buckets, obtuve %d", len(got))
	}
}

// Escenario 1: A y B iguales, C del mismo tamaño pero distinto.
func TestScenarioOneGroup(t *testing.T) {
	m := newMemTree()
	m.add(t, "/A", bytes.Repeat([]byte("x"), 100))
	m.add(t, "/B", bytes.Repeat([]byte("x"), 100))
	m.add(t, "/C", bytes.Repeat([]byte("y"), 100))

	e := newTestEngine(t, m.fs, 4, hasher.DefaultSampleSize, nil, nil)
	got := groupPaths(runPipeline(e, m.refs))
	if len(got) != 1 || fmt.Sprint(got[0]) != "[/A /B]" {
		t.Fatalf("grupos = %v", got)
	}
}

// Escenario 2: misma muestra inicial, distintos más adelante.
func TestScenarioSampleMatchFullDiffers(t *testing.T) {
	tests := []struct {
		name   string
		sample int64
		size   int
		diffAt int
	}{
		{"muestra 4096 en 5000 bytes", 4096, 5000, 4500},
		{"muestra por defecto en 10000 bytes", hasher.DefaultSampleSize, 10000, 9000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemTree()
			d := bytes.Repeat([]byte("q"), tt.size)
			other := append([]byte{}, d...)
			other[tt.diffAt] = 'r'
			m.add(t, "/D", d)
			m.add(t, "/E", other)

			e := newTestEngine(t, m.fs, 2, tt.sample, nil, nil)
			if q1, _ := e.hasher.QuickHash("/D"); q1 != mustQuick(t, e, "/E") {
				t.Fatal("la fase A debería agruparlos")
			}
			if got := runPipeline(e, m.refs); len(got) != 0 {
				t.Fatalf("la fase B debería separarlos: %v", groupPaths(got))
			}
		})
	}
}

func mustQuick(t *testing.T, e *Engine, path string) string {
	t.Helper()
	d, err := e.hasher.QuickHash(path)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// Escenario 4: archivos vacíos nunca son duplicados.
func TestScenarioZeroLength(t *testing.T) {
	m := newMemTree()
	m.add(t, "/z1", nil)
	m.add(t, "/z2", nil)

	e := newTestEngine(t, m.fs, 2, hasher.DefaultSampleSize, nil, nil)
	if b := e.PartitionBySize(context.Background(), m.refs); len(b) != 0 {
		t.Fatalf("los archivos vacíos no deben formar buckets: %v", b)
	}
	if got := runPipeline(e, m.refs); len(got) != 0 {
		t.Fatalf("no debe haber grupos: %v", groupPaths(got))
	}
}

// Escenario 5: tres copias idénticas forman un grupo de 3.
func TestScenarioThreeCopies(t *testing.T) {
	m := newMemTree()
	data := bytes.Repeat([]byte("abc"), 5000)
	m.add(t, "/1", data)
	m.add(t, "/2", data)
	m.add(t, "/3", data)

	e := newTestEngine(t, m.fs, 3, hasher.DefaultSampleSize, nil, nil)
	got := runPipeline(e, m.refs)
	if len(got) != 1 {
		t.Fatalf("esperaba 1 grupo, obtuve %d", len(got))
	}
	for _, g := range got {
		if g.Count != 3 || g.Size != int64(len(data)) {
			t.Fatalf("grupo incorrecto: count=%d size=%d", g.Count, g.Size)
		}
	}
}

func TestInvariantsOnMixedTree(t *testing.T) {
	m := newMemTree()
	contents := map[string][]byte{}
	for i := 0; i < 60; i++ {
		// 6 contenidos distintos, 3 longitudes distintas, colisiones de tamaño a propósito
		body := bytes.Repeat([]byte{byte('a' + i%6)}, 9000+(i%3)*10)
		path := fmt.Sprintf("/f%02d", i)
		m.add(t, path, body)
		contents[path] = body
	}
	m.add(t, "/unique", []byte("solo"))

	e := newTestEngine(t, m.fs, 4, 512, nil, nil)
	set := runPipeline(e, m.refs)
	if len(set) == 0 {
		t.Fatal("esperaba grupos")
	}

	seen := map[string]string{}
	for digest, g := range set {
		if g.Count < 2 || int(g.Count) != len(g.Files) {
			t.Fatalf("grupo %s con %d miembros", digest, g.Count)
		}
		first := contents[g.Files[0].Path]
		for _, f := range g.Files {
			if f.Size != g.Size {
				t.Fatalf("tamaño distinto dentro del grupo %s", digest)
			}
			if !bytes.Equal(contents[f.Path], first) {
				t.Fatalf("contenido distinto dentro del grupo %s", digest)
			}
			if prev, ok := seen[f.Path]; ok {
				t.Fatalf("%s aparece en %s y %s", f.Path, prev, digest)
			}
			seen[f.Path] = digest
		}
	}

	// Idempotencia: misma entrada, mismos grupos y mismos digests
	again := runPipeline(e, m.refs)
	if fmt.Sprint(groupPaths(set)) != fmt.Sprint(groupPaths(again)) {
		t.Fatal("dos ejecuciones deben producir los mismos grupos")
	}
	for d := range set {
		if _, ok := again[d]; !ok {
			t.Fatalf("digest %s no aparece en la segunda ejecución", d)
		}
	}
}

func TestHashSkipsUnreadableFiles(t *testing.T) {
	m := newMemTree()
	m.add(t, "/a", []byte("same-content"))
	m.add(t, "/b", []byte("same-content"))
	gone := m.add(t, "/c", []byte("same-content"))

	e := newTestEngine(t, m.fs, 2, 4, nil, nil)
	buckets := e.PartitionBySize(context.Background(), m.refs)
	if err := m.fs.Remove(gone.Path); err != nil {
		t.Fatal(err)
	}
	got := groupPaths(Aggregate(e.HashBuckets(context.Background(), buckets), logging.Discard()))
	if len(got) != 1 || fmt.Sprint(got[0]) != "[/a /b]" {
		t.Fatalf("grupos = %v", got)
	}
}

func TestHashBucketsCancelledProducesNothing(t *testing.T) {
	buckets := entities.SizeBuckets{
		4: &entities.FileGroup{Count: 2, Files: []*entities.FileRef{{Path: "/a", Size: 4}, {Path: "/b", Size: 4}}},
	}
	e := newTestEngine(t, afero.NewMemMapFs(), 2, 8192, interrupt.Cancelled(), nil)
	if got := Aggregate(e.HashBuckets(context.Background(), buckets), logging.Discard()); len(got) != 0 {
		t.Fatalf("token cancelado: esperaba 0 grupos, obtuve %d", len(got))
	}
}

// Una ejecución interrumpida devuelve un subconjunto válido de la completa.
func TestCancellationIsMonotonic(t *testing.T) {
	m := newMemTree()
	for i := 0; i < 20; i++ {
		body := bytes.Repeat([]byte{byte(i)}, 100+i)
		m.add(t, fmt.Sprintf("/x%02d", i), body)
		m.add(t, fmt.Sprintf("/y%02d", i), body)
	}

	complete := runPipeline(newTestEngine(t, m.fs, 2, 64, nil, nil), m.refs)
	if len(complete) != 20 {
		t.Fatalf("la ejecución completa debería tener 20 grupos, tiene %d", len(complete))
	}

	tok := interrupt.New()
	fs := &cancelAfterOpens{Fs: m.fs, tok: tok, after: 6}
	got := runPipeline(newTestEngine(t, fs, 1, 64, tok, nil), m.refs)

	if len(got) == 0 || len(got) >= len(complete) {
		t.Fatalf("esperaba un resultado parcial, obtuve %d de %d grupos", len(got), len(complete))
	}
	for d, g := range got {
		want, ok := complete[d]
		if !ok {
			t.Fatalf("grupo %s no existe en la ejecución completa", d)
		}
		if fmt.Sprint(groupPaths(entities.DuplicateSet{d: g})) != fmt.Sprint(groupPaths(entities.DuplicateSet{d: want})) {
			t.Fatalf("grupo %s difiere", d)
		}
	}
}

// cancelAfterOpens activa el token tras `after` aperturas de archivo.
type cancelAfterOpens struct {
	afero.Fs
	tok   *interrupt.Token
	after int64
	n     atomic.Int64
}

func (c *cancelAfterOpens) Open(name string) (afero.File, error) {
	if c.n.Add(1) >= c.after {
		c.tok.Set()
	}
	return c.Fs.Open(name)
}

func TestHashProgressReachesTotal(t *testing.T) {
	m := newMemTree()
	for i := 0; i < 5; i++ {
		m.add(t, fmt.Sprintf("/p%d", i), []byte("identical"))
	}
	sink := &recordingSink{}
	e := newTestEngine(t, m.fs, 2, 8192, nil, sink)

	if done, total := e.HashProgress(); done != 0 || total != 0 {
		t.Fatalf("antes de hashear: %d/%d", done, total)
	}
	runPipeline(e, m.refs)

	done, total := e.HashProgress()
	if total != 5 || done != 5 {
		t.Fatalf("HashProgress = %d/%d, esperaba 5/5", done, total)
	}
	if last := sink.last(progress.PhaseHash); last != [2]int64{5, 5} {
		t.Fatalf("última actualización = %v", last)
	}
}

func TestHashProgressCountsOnlyFullHashes(t *testing.T) {
	m := newMemTree()
	m.add(t, "/a1", []byte("aaaaX"))
	m.add(t, "/a2", []byte("aaaaX"))
	m.add(t, "/b", []byte("bbbbY"))
	m.add(t, "/c", []byte("ccccZ"))
	e := newTestEngine(t, m.fs, 2, 4, nil, nil)

	runPipeline(e, m.refs)

	// /b y /c se descartan en la fase A y no cuentan para el total
	if done, total := e.HashProgress(); done != 2 || total != 2 {
		t.Fatalf("HashProgress = %d/%d, esperaba 2/2", done, total)
	}
}

func TestAggregateDropsDigestWithMismatchedSizes(t *testing.T) {
	small := &entities.DuplicateGroup{Digest: "d", Size: 1}
	small.Add(&entities.FileRef{Path: "/s1", Size: 1})
	small.Add(&entities.FileRef{Path: "/s2", Size: 1})
	big := &entities.DuplicateGroup{Digest: "d", Size: 2}
	big.Add(&entities.FileRef{Path: "/b1", Size: 2})
	big.Add(&entities.FileRef{Path: "/b2", Size: 2})
	other := &entities.DuplicateGroup{Digest: "e", Size: 3}
	other.Add(&entities.FileRef{Path: "/o1", Size: 3})
	other.Add(&entities.FileRef{Path: "/o2", Size: 3})

	got := Aggregate([]entities.DuplicateSet{{"d": small, "e": other}, {"d": big}}, logging.Discard())
	if _, ok := got["d"]; ok {
		t.Fatalf("un digest con tamaños distintos no debe reportarse: %v", groupPaths(got))
	}
	if g, ok := got["e"]; !ok || g.Count != 2 {
		t.Fatalf("el grupo sin conflicto debe conservarse: %v", groupPaths(got))
	}
	for _, g := range got {
		for _, f := range g.Files {
			if f.Size != g.Size {
				t.Fatalf("%s tiene tamaño %d en un grupo de %d", f.Path, f.Size, g.Size)
			}
		}
	}
}

func TestAggregateMergesAndDropsSingletons(t *testing.T) {
	ref := func(p string) *entities.FileRef { return &entities.FileRef{Path: p, Size: 1} }

	g1 := &entities.DuplicateGroup{Digest: "d1", Size: 1}
	g1.Add(ref("/a"))
	g1.Add(ref("/b"))
	g2 := &entities.DuplicateGroup{Digest: "d2", Size: 1}
	g2.Add(ref("/e"))
	g3 := &entities.DuplicateGroup{Digest: "d1", Size: 1}
	g3.Add(ref("/d"))

	got := Aggregate([]entities.DuplicateSet{{"d1": g1, "d2": g2}, {"d1": g3}}, logging.Discard())
	if len(got) != 1 {
		t.Fatalf("esperaba 1 grupo, obtuve %d", len(got))
	}
	if got["d1"].Count != 3 || len(got["d1"].Files) != 3 {
		t.Fatalf("d1 debería tener 3 miembros tras fusionar, tiene %d", got["d1"].Count)
	}
}

func TestAggregateNeverRepeatsAFile(t *testing.T) {
	shared := &entities.FileRef{Path: "/c", Size: 1}
	g1 := &entities.DuplicateGroup{Digest: "d1", Size: 1}
	g1.Add(&entities.FileRef{Path: "/a", Size: 1})
	g1.Add(&entities.FileRef{Path: "/b", Size: 1})
	g1.Add(shared)
	g2 := &entities.DuplicateGroup{Digest: "d2", Size: 1}
	g2.Add(shared)
	g2.Add(&entities.FileRef{Path: "/x", Size: 1})
	g2.Add(&entities.FileRef{Path: "/y", Size: 1})

	got := Aggregate([]entities.DuplicateSet{{"d1": g1}, {"d2": g2}}, logging.Discard())
	count := 0
	for _, g := range got {
		if g.Count < 2 {
			t.Fatalf("grupo %s con %d miembros", g.Digest, g.Count)
		}
		for _, f := range g.Files {
			if f.Path == "/c" {
				count++
			}
		}
	}
	if count != 1 {
		t.Fatalf("/c aparece %d veces", count)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := newPool(3)
	var mu sync.Mutex
	running, peak := 0, 0
	p.each(50, func(int) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()

		mu.Lock()
		running--
		mu.Unlock()
	})
	if peak > 3 {
		t.Fatalf("pico de concurrencia %d supera el límite", peak)
	}
}

func TestSplitCoversEverything(t *testing.T) {
	refs := make([]*entities.FileRef, 10)
	for i := range refs {
		refs[i] = &entities.FileRef{Path: fmt.Sprint(i)}
	}
	for parts := 1; parts <= 12; parts++ {
		n := 0
		for _, c := range split(refs, parts) {
			n += len(c)
		}
		if n != len(refs) {
			t.Fatalf("parts=%d cubre %d de %d", parts, n, len(refs))
		}
	}
	if split(nil, 4) != nil {
		t.Fatal("split de nada debe ser nil")
	}
}
