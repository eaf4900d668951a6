package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/civicworks/voterbase/internal/pkg/distlock"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/schema"
	"github.com/civicworks/voterbase/internal/sink"
	"github.com/civicworks/voterbase/internal/source"
)

var testHeader = []string{
	"StateVoterID", "FName", "LName",
	"RegStNum", "RegStName", "RegStType",
	"RegCity", "RegState", "RegZipCode",
}

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	format := profile.FileFormat{Type: "csv", Delimiter: ",", Encoding: "utf-8", HasHeader: true}
	return profile.FromHeader("wa", format, testHeader)
}

func testBatch(rows ...[]string) *source.Batch {
	return &source.Batch{Columns: testHeader, Rows: rows}
}

func row(id, fname, lname string) []string {
	return []string{id, fname, lname, "123", "Main", "St", "Seattle", "WA", "98101"}
}

// fakeSink records every call and can reject configured voter ids as
// uniqueness violations.
type fakeSink struct {
	ensured   []string
	forced    bool
	chunks    [][]schema.Row
	rejectIDs map[string]bool
	failChunk int
}

func newFakeSink() *fakeSink {
	return &fakeSink{rejectIDs: map[string]bool{}, failChunk: -1}
}

func (f *fakeSink) EnsureTable(_ context.Context, table string, force bool) error {
	f.ensured = append(f.ensured, table)
	f.forced = force
	return nil
}

func (f *fakeSink) AppendChunk(_ context.Context, _ string, rows []schema.Row) (int, []sink.Violation, error) {
	if f.failChunk >= 0 && len(f.chunks) == f.failChunk {
		return 0, nil, errors.New("sink unavailable")
	}
	f.chunks = append(f.chunks, rows)

	inserted := 0
	var violations []sink.Violation
	for _, r := range rows {
		if f.rejectIDs[r[schema.FieldVoterID]] {
			violations = append(violations, sink.Violation{
				VoterID:   r[schema.FieldVoterID],
				FirstName: r[schema.FieldFirstName],
				LastName:  r[schema.FieldLastName],
				State:     r[schema.FieldState],
			})
			continue
		}
		inserted++
	}
	return inserted, violations, nil
}

func (f *fakeSink) rowCount() int {
	n := 0
	for _, c := range f.chunks {
		n += len(c)
	}
	return n
}

func TestImportEndToEnd(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)

	batch := testBatch(
		row("WA000000001", "Ada", "Lovelace"),
		row("WA000000002", "Alan", "Turing"),
	)
	res, err := e.Import(context.Background(), testProfile(t), batch, Options{
		Table:     "voters_wa_x_20260814",
		StateCode: "wa",
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if res.State != StateCompleted {
		t.Errorf("State = %s, want %s", res.State, StateCompleted)
	}
	if res.InsertedRows != 2 || res.ProcessedRows != 2 || res.TotalRows != 2 {
		t.Errorf("counts = %+v", res)
	}
	if res.RunID == "" {
		t.Error("RunID not set")
	}
	if len(fs.ensured) != 1 || fs.ensured[0] != "voters_wa_x_20260814" {
		t.Errorf("ensured = %v", fs.ensured)
	}

	first := fs.chunks[0][0]
	if first[schema.FieldAddress] != "123 Main St Seattle WA 98101" {
		t.Errorf("address = %q", first[schema.FieldAddress])
	}
	if first[schema.FieldFirstName] != "Ada" || first[schema.FieldVoterID] != "WA000000001" {
		t.Errorf("row = %v", first)
	}
}

func TestImportStateCodeOverridesMappedColumn(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)

	// The extract claims OR in its state column; the caller's code wins.
	batch := testBatch([]string{"WA1", "Ada", "L", "1", "Oak", "Ave", "Salem", "OR", "97301"})
	_, err := e.Import(context.Background(), testProfile(t), batch, Options{
		Table:     "voters_wa_y_20260814",
		StateCode: "wa",
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	got := fs.chunks[0][0][schema.FieldState]
	if got != "WA" {
		t.Errorf("state = %q, want WA", got)
	}
}

func TestImportWithoutStateCodeKeepsMappedValue(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)

	batch := testBatch([]string{"WA1", "Ada", "L", "1", "Oak", "Ave", "Salem", "OR", "97301"})
	_, err := e.Import(context.Background(), testProfile(t), batch, Options{
		Table: "voters_xx_20260814",
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := fs.chunks[0][0][schema.FieldState]; got != "OR" {
		t.Errorf("state = %q, want mapped OR", got)
	}
}

func TestImportDuplicateIDsAbortBeforeAnyWrite(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)

	batch := testBatch(
		row("WA1", "Ada", "Lovelace"),
		row("WA1", "Grace", "Hopper"),
		row("WA2", "Alan", "Turing"),
		row("WA2", "Edsger", "Dijkstra"),
		row("WA3", "Donald", "Knuth"),
	)
	res, err := e.Import(context.Background(), testProfile(t), batch, Options{
		Table:     "voters_wa_dup_20260814",
		StateCode: "wa",
		Force:     true,
	})
	if !errors.Is(err, ErrDuplicateVoterIDs) {
		t.Fatalf("err = %v, want ErrDuplicateVoterIDs", err)
	}

	if res.State != StateAborted {
		t.Errorf("State = %s, want %s", res.State, StateAborted)
	}
	// Four rows sit in duplicate groups; two distinct offending ids.
	if res.Duplicates.Count != 4 {
		t.Errorf("Duplicates.Count = %d, want 4", res.Duplicates.Count)
	}
	if len(res.Duplicates.Sample) != 2 {
		t.Errorf("Sample = %v, want two ids", res.Duplicates.Sample)
	}

	// Nothing touched the sink, force included.
	if len(fs.ensured) != 0 || len(fs.chunks) != 0 {
		t.Errorf("sink touched on abort: ensured=%v chunks=%d", fs.ensured, len(fs.chunks))
	}
}

func TestImportDuplicateSampleCapped(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)

	var rows [][]string
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("WA%d", i)
		rows = append(rows, row(id, "A", "B"), row(id, "C", "D"))
	}
	res, err := e.Import(context.Background(), testProfile(t), testBatch(rows...), Options{
		Table: "voters_wa_many_20260814",
	})
	if !errors.Is(err, ErrDuplicateVoterIDs) {
		t.Fatalf("err = %v", err)
	}
	if res.Duplicates.Count != 16 {
		t.Errorf("Count = %d, want 16", res.Duplicates.Count)
	}
	if len(res.Duplicates.Sample) != violationSampleSize {
		t.Errorf("Sample = %v, want %d entries", res.Duplicates.Sample, violationSampleSize)
	}
}

func TestImportEmptyIDsAreNotDuplicates(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)

	batch := testBatch(
		row("", "Ada", "Lovelace"),
		row("", "Alan", "Turing"),
		row("WA1", "Grace", "Hopper"),
	)
	res, err := e.Import(context.Background(), testProfile(t), batch, Options{
		Table:     "voters_wa_blank_20260814",
		StateCode: "wa",
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.State != StateCompleted || res.InsertedRows != 3 {
		t.Errorf("res = %+v", res)
	}
}

func TestImportChunking(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)

	var rows [][]string
	for i := 0; i < 25; i++ {
		rows = append(rows, row(fmt.Sprintf("WA%03d", i), "A", "B"))
	}
	res, err := e.Import(context.Background(), testProfile(t), testBatch(rows...), Options{
		Table:     "voters_wa_chunks_20260814",
		StateCode: "wa",
		ChunkSize: 10,
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(fs.chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(fs.chunks))
	}
	if len(fs.chunks[0]) != 10 || len(fs.chunks[1]) != 10 || len(fs.chunks[2]) != 5 {
		t.Errorf("chunk sizes = %d %d %d", len(fs.chunks[0]), len(fs.chunks[1]), len(fs.chunks[2]))
	}
	if fs.rowCount() != 25 || res.InsertedRows != 25 {
		t.Errorf("rows written = %d, inserted = %d", fs.rowCount(), res.InsertedRows)
	}
}

func TestImportAccumulatesViolationsAcrossChunks(t *testing.T) {
	fs := newFakeSink()
	fs.rejectIDs["WA002"] = true
	fs.rejectIDs["WA013"] = true
	e := New(fs)

	var rows [][]string
	for i := 0; i < 20; i++ {
		rows = append(rows, row(fmt.Sprintf("WA%03d", i), "A", "B"))
	}
	res, err := e.Import(context.Background(), testProfile(t), testBatch(rows...), Options{
		Table:     "voters_wa_viol_20260814",
		StateCode: "wa",
		ChunkSize: 10,
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.State != StateCompletedWithViolations {
		t.Errorf("State = %s, want %s", res.State, StateCompletedWithViolations)
	}
	if res.InsertedRows != 18 || len(res.Violations) != 2 {
		t.Errorf("inserted = %d, violations = %v", res.InsertedRows, res.Violations)
	}
	if res.Violations[0].VoterID != "WA002" || res.Violations[1].VoterID != "WA013" {
		t.Errorf("violations = %v", res.Violations)
	}
}

func TestImportSinkErrorFailsRun(t *testing.T) {
	fs := newFakeSink()
	fs.failChunk = 1
	e := New(fs)

	var rows [][]string
	for i := 0; i < 20; i++ {
		rows = append(rows, row(fmt.Sprintf("WA%03d", i), "A", "B"))
	}
	res, err := e.Import(context.Background(), testProfile(t), testBatch(rows...), Options{
		Table:     "voters_wa_fail_20260814",
		StateCode: "wa",
		ChunkSize: 10,
	})
	if err == nil {
		t.Fatal("want error when sink fails")
	}
	if res.InsertedRows != 10 {
		t.Errorf("InsertedRows = %d, want 10 from the first chunk", res.InsertedRows)
	}
}

func TestImportRequiresTable(t *testing.T) {
	e := New(newFakeSink())
	_, err := e.Import(context.Background(), testProfile(t), testBatch(), Options{})
	if err == nil {
		t.Fatal("want error without a destination table")
	}
}

func TestImportUsesCallerRunID(t *testing.T) {
	e := New(newFakeSink())
	res, err := e.Import(context.Background(), testProfile(t), testBatch(row("WA1", "A", "B")), Options{
		RunID: "preassigned",
		Table: "voters_wa_z_20260814",
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.RunID != "preassigned" {
		t.Errorf("RunID = %q", res.RunID)
	}
}

func TestPreview(t *testing.T) {
	prof := testProfile(t)
	batch := testBatch(
		row("WA1", "Ada", "Lovelace"),
		row("WA2", "Alan", "Turing"),
		row("WA3", "Grace", "Hopper"),
	)

	rows, cols := Preview(prof, batch, 2)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][schema.FieldAddress] == "" {
		t.Error("preview rows must carry the synthesized address")
	}

	seen := map[string]bool{}
	for _, c := range cols {
		seen[c] = true
	}
	for _, want := range []string{"voter_id", "first_name", "last_name", "address", "city", "state", "zip_code"} {
		if !seen[want] {
			t.Errorf("canonical columns missing %s: %v", want, cols)
		}
	}

	// The header maps nothing to the date fields, yet buildRow backfills
	// every required field into each row; the column set must agree or
	// validation rejects an onboardable extract.
	for _, want := range schema.RequiredFields() {
		if !seen[want] {
			t.Errorf("required field %s missing from columns: %v", want, cols)
		}
	}
	if v := schema.Validate(cols, rows); !v.Valid {
		t.Errorf("preview of a clean extract failed validation: %v", v.Errors)
	}
}

func TestViolationSample(t *testing.T) {
	res := &Result{}
	for i := 0; i < 9; i++ {
		res.Violations = append(res.Violations, sink.Violation{VoterID: fmt.Sprintf("WA%d", i)})
	}
	if got := res.ViolationSample(); len(got) != violationSampleSize {
		t.Errorf("sample = %d, want %d", len(got), violationSampleSize)
	}
}

type fakeLock struct {
	held     bool
	acquired bool
	released bool
}

func (l *fakeLock) TryAcquire(context.Context) (bool, error) {
	l.acquired = true
	return !l.held, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

func TestImportRefusedWhileTableLocked(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)
	lock := &fakeLock{held: true}
	e.SetLockFactory(func(string) distlock.Lock { return lock })

	batch := testBatch(row("WA000000001", "Ada", "Lovelace"))
	_, err := e.Import(context.Background(), testProfile(t), batch, Options{Table: "voters_wa_x"})
	if !errors.Is(err, ErrTableLocked) {
		t.Fatalf("err = %v, want ErrTableLocked", err)
	}
	if len(fs.ensured) != 0 {
		t.Error("sink touched despite held lock")
	}
	if lock.released {
		t.Error("released a lock it never held")
	}
}

func TestImportReleasesTableLock(t *testing.T) {
	fs := newFakeSink()
	e := New(fs)
	lock := &fakeLock{}
	e.SetLockFactory(func(string) distlock.Lock { return lock })

	batch := testBatch(row("WA000000001", "Ada", "Lovelace"))
	if _, err := e.Import(context.Background(), testProfile(t), batch, Options{Table: "voters_wa_x"}); err != nil {
		t.Fatal(err)
	}
	if !lock.acquired || !lock.released {
		t.Errorf("acquired=%v released=%v", lock.acquired, lock.released)
	}
}
