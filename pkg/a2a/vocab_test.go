package a2a

import "testing"

func TestVocabulary_Names(t *testing.T) {
	v := DefaultVocabulary()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"known domain", v.DomainName(DomainClaims), "claims"},
		{"unknown domain echoes", v.DomainName("Z"), "Z"},
		{"known op", v.OperationName(DomainStatus, "⚡"), "active"},
		{"same symbol, other domain", v.OperationName(DomainResources, "🔒"), "lock"},
		{"unknown op echoes", v.OperationName(DomainExecute, "💥"), "💥"},
		{"describe", v.Describe(OpCreateTask), "tasks.create-task"},
		{"describe unknown", v.Describe(OpKey{Domain: "Z", Op: "q"}), "Z.q"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("a2a:vocab_test - %s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestVocabulary_Entries(t *testing.T) {
	v := DefaultVocabulary()

	all := v.Entries("")
	if len(all) != len(operationNames) {
		t.Fatalf("a2a:vocab_test - expected %d entries, got %d", len(operationNames), len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Domain > all[i].Domain {
			t.Fatalf("a2a:vocab_test - entries not sorted by domain at %d", i)
		}
	}

	claims := v.Entries("C")
	if len(claims) != 2 {
		t.Fatalf("a2a:vocab_test - expected 2 claim entries, got %d", len(claims))
	}
	for _, e := range claims {
		if e.DomainName != "claims" || e.Code != "C."+e.Op {
			t.Errorf("a2a:vocab_test - unexpected entry %+v", e)
		}
	}

	if got := v.Entries("Z"); len(got) != 0 {
		t.Errorf("a2a:vocab_test - expected no entries for Z, got %d", len(got))
	}
}

func TestVocabulary_IsolatedFromSource(t *testing.T) {
	domains := map[Domain]string{"C": "claims"}
	ops := map[OpKey]string{{Domain: "C", Op: "x"}: "thing"}
	v := NewVocabulary(domains, ops)

	domains["C"] = "mutated"
	ops[OpKey{Domain: "C", Op: "x"}] = "mutated"

	if v.DomainName("C") != "claims" || v.OperationName("C", "x") != "thing" {
		t.Error("a2a:vocab_test - vocabulary must not observe later source mutation")
	}
}

func TestDomain_Known(t *testing.T) {
	for _, d := range []Domain{"C", "T", "S", "M", "R", "E", "H", "Q", "P", "X"} {
		if !d.Known() {
			t.Errorf("a2a:vocab_test - expected %s to be known", d)
		}
	}
	if Domain("Z").Known() {
		t.Error("a2a:vocab_test - Z must not be known")
	}
}
