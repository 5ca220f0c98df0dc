package a2a

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Envelope
		wantErr bool
	}{
		{
			name: "atomic status update",
			raw:  `Ω{alice|hub|1|S.⚡(85,"coding")}`,
			want: &Envelope{From: "alice", To: "hub", Layer: LayerAtomic, Payload: `S.⚡(85,"coding")`},
		},
		{
			name: "chain payload keeps pipes",
			raw:  `Ω{bob|*|2|C.🔒("a")|M.📢("x")}`,
			want: &Envelope{From: "bob", To: "*", Layer: LayerChain, Payload: `C.🔒("a")|M.📢("x")`},
		},
		{
			name: "role recipient",
			raw:  `Ω{carol|@reviewer|1|M.✓}`,
			want: &Envelope{From: "carol", To: "@reviewer", Layer: LayerAtomic, Payload: "M.✓"},
		},
		{
			name: "large layer number",
			raw:  `Ω{a|b|42|M.✓}`,
			want: &Envelope{From: "a", To: "b", Layer: 42, Payload: "M.✓"},
		},
		{
			name: "transport layer zero",
			raw:  `Ω{peer-1|hub|0|P.🤝(v0.2)}`,
			want: &Envelope{From: "peer-1", To: "hub", Layer: LayerTransport, Payload: "P.🤝(v0.2)"},
		},
		{name: "layer with leading zero", raw: "Ω{a|b|01|M.✓}", wantErr: true},
		{name: "layer with several leading zeros", raw: "Ω{a|b|007|M.✓}", wantErr: true},
		{name: "double zero layer", raw: "Ω{a|b|00|M.✓}", wantErr: true},
		{name: "not an envelope", raw: "not an envelope", wantErr: true},
		{name: "missing closing brace", raw: "Ω{a|b|1|M.✓", wantErr: true},
		{name: "empty from", raw: "Ω{|b|1|M.✓}", wantErr: true},
		{name: "empty to", raw: "Ω{a||1|M.✓}", wantErr: true},
		{name: "negative layer", raw: "Ω{a|b|-1|M.✓}", wantErr: true},
		{name: "non numeric layer", raw: "Ω{a|b|x|M.✓}", wantErr: true},
		{name: "empty payload", raw: "Ω{a|b|1|}", wantErr: true},
		{name: "too few fields", raw: "Ω{a|b|1}", wantErr: true},
		{name: "payload with brace", raw: "Ω{a|b|1|M.💬(\"}\")}", wantErr: true},
		{name: "empty string", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("a2a:envelope_test - expected error, got %+v", got)
				}
				if got != nil {
					t.Errorf("a2a:envelope_test - expected nil envelope on error, got %+v", got)
				}
				var perr *ParseError
				if !errors.As(err, &perr) || perr.Kind != ErrKindEnvelope {
					t.Errorf("a2a:envelope_test - expected envelope ParseError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("a2a:envelope_test - unexpected error: %v", err)
			}
			tt.want.Raw = tt.raw
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("a2a:envelope_test - Decode() mismatch (-want +got):\n%s", diff)
			}
			if again := Encode(got.From, got.To, got.Layer, got.Payload); again != tt.raw {
				t.Errorf("a2a:envelope_test - Encode(Decode(raw)) = %q, want %q", again, tt.raw)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		from, to string
		layer    Layer
		payload  string
	}{
		{"alice", "hub", LayerAtomic, `S.⚡(85,"coding")`},
		{"hub", "alice", LayerAtomic, "M.✓"},
		{"peer-1", "*", LayerTransport, "P.🤝(v0.2,opchain)"},
		{"x", "@ops", LayerChain, `T.📋("a")→T.✅("a")|M.📢("done")`},
		{"agent.with.dots", "other_agent", 9, "E.❌(\"boom\")"},
	}

	for _, c := range cases {
		raw := Encode(c.from, c.to, c.layer, c.payload)
		env, err := Decode(raw)
		if err != nil {
			t.Fatalf("a2a:envelope_test - Decode(%q) failed: %v", raw, err)
		}
		want := &Envelope{From: c.from, To: c.to, Layer: c.layer, Payload: c.payload, Raw: raw}
		if diff := cmp.Diff(want, env); diff != "" {
			t.Errorf("a2a:envelope_test - round trip mismatch (-want +got):\n%s", diff)
		}
		if again := Encode(env.From, env.To, env.Layer, env.Payload); again != raw {
			t.Errorf("a2a:envelope_test - re-encode = %q, want %q", again, raw)
		}
	}
}

func TestEncode_ExactFormat(t *testing.T) {
	got := Encode("hub", "alice", LayerAtomic, "M.✓")
	if got != "Ω{hub|alice|1|M.✓}" {
		t.Errorf("a2a:envelope_test - Encode() = %q", got)
	}
}

func TestEnvelope_Recipient(t *testing.T) {
	tests := []struct {
		to   string
		want RecipientKind
	}{
		{"alice", RecipientAgent},
		{"@reviewer", RecipientRole},
		{"*", RecipientBroadcast},
	}
	for _, tt := range tests {
		env := &Envelope{To: tt.to}
		if got := env.Recipient(); got != tt.want {
			t.Errorf("a2a:envelope_test - Recipient(%q) = %s, want %s", tt.to, got, tt.want)
		}
	}
}

func TestEnvelope_Reply(t *testing.T) {
	env, err := Decode("Ω{alice|hub|1|S.👋}")
	if err != nil {
		t.Fatalf("a2a:envelope_test - unexpected error: %v", err)
	}
	if got := env.Reply("hub", LayerAtomic, "M.✓"); got != "Ω{hub|alice|1|M.✓}" {
		t.Errorf("a2a:envelope_test - Reply() = %q", got)
	}
}

func TestLayer_String(t *testing.T) {
	if LayerChain.String() != "chain" {
		t.Errorf("a2a:envelope_test - LayerChain.String() = %q", LayerChain.String())
	}
	if Layer(7).String() != "layer-7" {
		t.Errorf("a2a:envelope_test - Layer(7).String() = %q", Layer(7).String())
	}
}
