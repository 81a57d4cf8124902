package era

import "testing"

func TestCheck(t *testing.T) {
	cases := []struct {
		name    string
		family  Family
		year    int
		allowed bool
	}{
		{"hustle before 2015", FamilyHustle, 2014, false},
		{"hustle at 2015", FamilyHustle, 2015, true},
		{"tracking before 2013", FamilyTracking, 2012, false},
		{"tracking after 2013", FamilyTracking, 2020, true},
		{"stats api core before 1996", FamilyStatsAPICore, 1950, false},
		{"stats api core at 1996", FamilyStatsAPICore, 1996, true},
		{"bulk raptor before 1976", FamilyBulkRAPTOR, 1970, false},
		{"draft combine before 2000", FamilyDraftCombine, 1999, false},
		{"unrestricted family always allowed", FamilyUnrestricted, 1900, true},
		{"unknown family treated unrestricted", Family("made_up"), 1900, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Check(tc.family, tc.year)
			if got.Allowed != tc.allowed {
				t.Fatalf("Check(%s, %d).Allowed = %v, want %v", tc.family, tc.year, got.Allowed, tc.allowed)
			}
			if !tc.allowed && got.Reason == "" {
				t.Fatalf("Check(%s, %d) disallowed but carries no reason", tc.family, tc.year)
			}
		})
	}
}

func TestFirstAllowed(t *testing.T) {
	min, restricted := FirstAllowed(FamilyHustle)
	if !restricted || min != 2015 {
		t.Fatalf("FirstAllowed(hustle) = (%d, %v), want (2015, true)", min, restricted)
	}

	if _, restricted := FirstAllowed(FamilyUnrestricted); restricted {
		t.Fatalf("FirstAllowed(unrestricted) should report unrestricted")
	}
}
