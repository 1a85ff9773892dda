package regulatory

import (
	"context"
	"strings"
	"testing"

	"essentia/internal/db/mock"
	"essentia/internal/store"
	"essentia/models"
)

func newTestService(t *testing.T) (*Service, *store.Store, uint) {
	t.Helper()
	database, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}
	st := store.New(database)
	ownerID, err := st.ResolveOwner(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve owner: %v", err)
	}
	return NewService(st), st, ownerID
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 100},
		{"-", 100},
		{"N/A", 100},
		{"nr", 100},
		{"P", 0},
		{"Prohibited", 0},
		{"prohibit", 0},
		{"banned", 0},
		{"0.1", 0.1},
		{"0.1%", 0.1},
		{" 12.5 % ", 12.5},
		{"0,02", 0.02},
		{"100", 100},
		// Unreadable cells fail closed rather than losing the row.
		{"101", 0},
		{"-3", 0},
		{"see note", 0},
	}
	for _, tc := range cases {
		if got := ParseLimit(tc.in); got != tc.want {
			t.Errorf("ParseLimit(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

const standardsCSV = `Name,CAS Number,Amendment,Type,Risk,Cat 1,Cat 2,Cat 3,Cat 4,Cat 5A,Cat 6,Cat 7,Cat 8,Cat 9,Cat 10,Cat 11,Cat 12
Hydroxyisohexyl 3-cyclohexene carboxaldehyde,31906-04-4,51,Restriction,Sensitization,P,P,P,P,P,P,P,P,P,P,P,P
Geraniol,106-24-1,51,Restriction,Sensitization,1.2,1.6,6.5,6.5,3.4,-,NR,,13.0,2.7,100,100
Benzyl salicylate,118-58-1,51,Restriction,Sensitization,0.5%,0.7%,3.0%,3.0%,1.6%,see note,-,-,-,-,-,-
Mystery material,no-cas-here,51,Restriction,,1,1,1,1,1,1,1,1,1,1,1,1
`

func TestImportCSV(t *testing.T) {
	svc, st, owner := newTestService(t)
	ctx := context.Background()

	stats, err := svc.ImportCSV(ctx, strings.NewReader(standardsCSV), owner)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Rows != 3 || stats.Created != 3 {
		t.Fatalf("stats = %+v, want 3 created", stats)
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("errors = %v, want the row without a CAS rejected", stats.Errors)
	}
	if stats.Errors[0].Line != 5 {
		t.Fatalf("rejected line = %d, want 5", stats.Errors[0].Line)
	}

	// Prohibition markers become a zero limit in every category.
	lyral, err := st.FindRegulatoryByCAS(ctx, owner, "31906-04-4")
	if err != nil {
		t.Fatalf("find prohibited standard: %v", err)
	}
	for i, limit := range lyral.CategoryLimits() {
		if limit != models.LimitProhibited {
			t.Fatalf("cat%d = %v, want prohibited", i+1, limit)
		}
	}

	// Blank and "not restricted" cells stay unrestricted.
	geraniol, err := st.FindRegulatoryByCAS(ctx, owner, "106-24-1")
	if err != nil {
		t.Fatalf("find geraniol: %v", err)
	}
	limits := geraniol.CategoryLimits()
	if limits[0] != 1.2 || limits[4] != 3.4 {
		t.Fatalf("limits = %v", limits)
	}
	for _, idx := range []int{5, 6, 7} {
		if limits[idx] != models.LimitUnrestricted {
			t.Fatalf("cat%d = %v, want unrestricted", idx+1, limits[idx])
		}
	}

	// Percent suffixes are stripped, and one unreadable cell prohibits its
	// category without losing the rest of the row.
	benzyl, err := st.FindRegulatoryByCAS(ctx, owner, "118-58-1")
	if err != nil {
		t.Fatalf("find benzyl salicylate: %v", err)
	}
	if benzyl.Cat1 != 0.5 {
		t.Fatalf("cat1 = %v, want 0.5", benzyl.Cat1)
	}
	if benzyl.Cat6 != models.LimitProhibited {
		t.Fatalf("cat6 = %v, want prohibited for an unreadable cell", benzyl.Cat6)
	}
	if benzyl.Cat7 != models.LimitUnrestricted {
		t.Fatalf("cat7 = %v, want unrestricted", benzyl.Cat7)
	}
}

func TestImportCSVSniffsDelimiter(t *testing.T) {
	svc, st, owner := newTestService(t)
	ctx := context.Background()

	tsv := "Material\tCAS\tCat 1\tCat 2\tCat 3\tCat 4\tCat 5\tCat 6\tCat 7\tCat 8\tCat 9\tCat 10\tCat 11\tCat 12\n" +
		"Citral\t5392-40-5\t0.2\t0.3\t1.2\t1.2\t0.6\t-\t-\t-\t-\t-\t-\t-\n"

	stats, err := svc.ImportCSV(ctx, strings.NewReader(tsv), owner)
	if err != nil {
		t.Fatalf("import tsv: %v", err)
	}
	if stats.Created != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, err := st.FindRegulatoryByCAS(ctx, owner, "5392-40-5"); err != nil {
		t.Fatalf("citral not stored: %v", err)
	}
}

func TestImportCSVRejectsHeaderlessTable(t *testing.T) {
	svc, _, owner := newTestService(t)
	_, err := svc.ImportCSV(context.Background(), strings.NewReader("a,b,c\n1,2,3\n"), owner)
	if err == nil {
		t.Fatal("expected an error for a table without a name column")
	}
}

func TestImportCSVReimportReplaces(t *testing.T) {
	svc, st, owner := newTestService(t)
	ctx := context.Background()

	first := "Name,CAS,Amendment,Cat 1\nCitral,5392-40-5,50,0.3\n"
	if _, err := svc.ImportCSV(ctx, strings.NewReader(first), owner); err != nil {
		t.Fatalf("first import: %v", err)
	}

	second := "Name,CAS,Amendment,Cat 1\nCitral,5392-40-5,51,0.2\n"
	stats, err := svc.ImportCSV(ctx, strings.NewReader(second), owner)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if stats.Updated != 1 || stats.Created != 0 {
		t.Fatalf("stats = %+v, want 1 updated", stats)
	}

	std, err := st.FindRegulatoryByCAS(ctx, owner, "5392-40-5")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if std.Amendment != "51" || std.Cat1 != 0.2 {
		t.Fatalf("stored = amendment %s cat1 %v", std.Amendment, std.Cat1)
	}
}

func TestParseProhibitions(t *testing.T) {
	text := `IFRA Prohibited Materials Notice
Musk ambrette 83-66-9 prohibited in all finished products
Styrax (crude gum) 8024-01-9 PROHIBITED
Musk ambrette 83-66-9 prohibited (duplicate listing)
Geraniol 106-24-1 restricted, see the standards table
some other line without a registry number, prohibited
`
	standards := parseProhibitions(text)
	if len(standards) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(standards), standards)
	}

	musk := standards[0]
	if musk.CAS != "83-66-9" {
		t.Fatalf("CAS = %q", musk.CAS)
	}
	if musk.Name != "Musk ambrette" {
		t.Fatalf("Name = %q", musk.Name)
	}
	for i, limit := range musk.CategoryLimits() {
		if limit != models.LimitProhibited {
			t.Fatalf("cat%d = %v, want prohibited", i+1, limit)
		}
	}
}
