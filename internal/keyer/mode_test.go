package keyer

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"iambic-a", IambicA, false},
		{"IAMBIC_B", IambicB, false},
		{" ultimatic ", Ultimatic, false},
		{"b", IambicB, false},
		{"bug", IambicA, true},
		{"", IambicA, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	// String and ParseMode agree.
	for m := IambicA; m < numModes; m++ {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
}

func TestModeNext(t *testing.T) {
	if IambicA.Next() != IambicB || IambicB.Next() != Ultimatic || Ultimatic.Next() != IambicA {
		t.Fatal("Next should cycle iambic-a -> iambic-b -> ultimatic -> iambic-a")
	}
	if Mode(9).Next() != IambicA {
		t.Fatal("invalid mode should cycle to iambic-a")
	}
}

func TestPriorityPaddle(t *testing.T) {
	tests := []struct {
		mode           Mode
		current, first Paddle
		want           Paddle
	}{
		{IambicA, PaddleNone, PaddleNone, PaddleDot},
		{IambicA, PaddleDot, PaddleDot, PaddleDash},
		{IambicA, PaddleDash, PaddleDot, PaddleDot},
		{IambicB, PaddleDot, PaddleDash, PaddleDash},
		{IambicB, PaddleDash, PaddleDash, PaddleDot},
		{Ultimatic, PaddleNone, PaddleNone, PaddleDot},
		{Ultimatic, PaddleDot, PaddleDash, PaddleDot},
		{Ultimatic, PaddleDash, PaddleDash, PaddleDot},
		{Ultimatic, PaddleDash, PaddleDot, PaddleDash},
		{Ultimatic, PaddleDot, PaddleDot, PaddleDash},
	}
	for _, tt := range tests {
		if got := PriorityPaddle(tt.mode, tt.current, tt.first); got != tt.want {
			t.Errorf("PriorityPaddle(%v, current=%v, first=%v) = %v, want %v",
				tt.mode, tt.current, tt.first, got, tt.want)
		}
	}
}
