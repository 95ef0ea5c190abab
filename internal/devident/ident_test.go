package devident

import (
	"errors"
	"testing"

	"github.com/dcontrol/midiboot/internal/sysex"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    Ident
		wantErr bool
	}{
		{
			name: "extended manufacturer ascii version",
			msg:  "F0 7E 00 06 02 00 01 55 12 00 07 00 31 2E 32 33 F7",
			want: Ident{Channel: 0, Manufacturer: 0x000155, Family: 0x12, Product: 0x07, FwVersion: "1.23"},
		},
		{
			name: "single byte manufacturer numeric version",
			msg:  "F0 7E 10 06 02 41 01 02 03 04 01 02 03 04 F7",
			want: Ident{Channel: 0x10, Manufacturer: 0x41, Family: 0x101, Product: 0x203, FwVersion: "1.2.3.4"},
		},
		{
			name:    "identity request",
			msg:     "F0 7E 7F 06 01 F7",
			wantErr: true,
		},
		{
			name:    "truncated by constrained link",
			msg:     "F0 7E 00 06 02 00 01 55",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(sysex.MustParse(tt.msg))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Channel != tt.want.Channel {
				t.Errorf("Channel = %v, want %v", got.Channel, tt.want.Channel)
			}
			if got.Manufacturer != tt.want.Manufacturer {
				t.Errorf("Manufacturer = %06X, want %06X", got.Manufacturer, tt.want.Manufacturer)
			}
			if got.Family != tt.want.Family {
				t.Errorf("Family = %X, want %X", got.Family, tt.want.Family)
			}
			if got.Product != tt.want.Product {
				t.Errorf("Product = %X, want %X", got.Product, tt.want.Product)
			}
			if got.FwVersion != tt.want.FwVersion {
				t.Errorf("FwVersion = %q, want %q", got.FwVersion, tt.want.FwVersion)
			}
		})
	}
}

func TestParseNotIdentity(t *testing.T) {
	_, err := Parse(sysex.MustParse("F0 00 01 55 42 08 F7"))
	if !errors.Is(err, ErrNotIdentity) {
		t.Errorf("Parse() error = %v, want ErrNotIdentity", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	id := Ident{Manufacturer: ManufacturerDamageControl, Family: 0x12, Product: 0x07, FwVersion: "1.23"}
	msg := id.Encode()
	if got, want := msg.String(), "F0 7E 00 06 02 00 01 55 12 00 07 00 31 2E 32 33 F7"; got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
	back, err := Parse(msg)
	if err != nil {
		t.Fatalf("Parse(Encode()) error = %v", err)
	}
	if back.Family != id.Family || back.Product != id.Product || back.FwVersion != id.FwVersion {
		t.Errorf("round trip = %v, want %v", back, &id)
	}
}

func TestIdentBytes(t *testing.T) {
	id := &Ident{Family: 0x12, Product: 0x07}
	if id.FamilyByte() != 0x12 || id.ProductByte() != 0x07 {
		t.Errorf("FamilyByte/ProductByte = %02X/%02X, want 12/07", id.FamilyByte(), id.ProductByte())
	}
	if id.PID() != 0x1207 {
		t.Errorf("PID() = %04X, want 1207", id.PID())
	}
}

func TestDetailsIsEmpty(t *testing.T) {
	var nilDetails *Details
	if !nilDetails.IsEmpty() {
		t.Error("nil details should be empty")
	}
	if !(&Details{CrippledIO: true}).IsEmpty() {
		t.Error("details with only CrippledIO should be empty")
	}
	if (&Details{Ident: Ident{Family: 1}}).IsEmpty() {
		t.Error("details with a family should not be empty")
	}
}
