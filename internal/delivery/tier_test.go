package delivery

import "testing"

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		km   float64
		want Tier
	}{
		{0, TierFreePickup},
		{0.3, TierFreePickup},
		{0.5, TierFreePickup},
		{0.50001, TierLightDelivery},
		{3, TierLightDelivery},
		{5, TierLightDelivery},
		{5.00001, TierStandardDelivery},
		{12, TierStandardDelivery},
		{20, TierStandardDelivery},
		{20.00001, TierReject},
		{25, TierReject},
		{100, TierReject},
	}
	for _, tc := range tests {
		if got := Classify(tc.km); got != tc.want {
			t.Errorf("Classify(%v) = %s, expected %s", tc.km, got, tc.want)
		}
	}
}

func TestFeesFor(t *testing.T) {
	fees := Fees{Light: 10000, Standard: 30000}

	if got := fees.For(TierFreePickup); got != 0 {
		t.Errorf("free pickup fee = %d, expected 0", got)
	}
	if got := fees.For(TierLightDelivery); got != 10000 {
		t.Errorf("light fee = %d, expected 10000", got)
	}
	if got := fees.For(TierStandardDelivery); got != 30000 {
		t.Errorf("standard fee = %d, expected 30000", got)
	}
	if got := fees.For(TierReject); got != 0 {
		t.Errorf("reject fee = %d, expected 0", got)
	}
}
