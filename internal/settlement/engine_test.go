package settlement

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	memberA = Member{ID: uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"), Name: "Ana"}
	memberB = Member{ID: uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"), Name: "Ben"}
	memberC = Member{ID: uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc"), Name: "Cam"}
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func item(id string, label, price, qty string) Item {
	return Item{ID: uuid.MustParse(id), Label: label, Price: dec(price), Quantity: dec(qty)}
}

func approxEqual(t *testing.T, got, want decimal.Decimal, context string) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(dec("0.01")) {
		t.Fatalf("%s: got %s want %s", context, got, want)
	}
}

func TestSettlePartiallyClaimedReceipt(t *testing.T) {
	burger := item("11111111-1111-1111-1111-111111111111", "Burger", "15", "1")
	fries := item("22222222-2222-2222-2222-222222222222", "Fries", "5", "1")
	soda := item("33333333-3333-3333-3333-333333333333", "Soda", "3", "1")
	receipt := Receipt{
		Items:      []Item{burger, fries, soda},
		Subtotal:   dec("23"),
		Tax:        dec("0"),
		Tip:        dec("10"),
		GrandTotal: dec("33"),
	}
	claims := []Claim{
		{MemberID: memberA.ID, ItemID: burger.ID, Quantity: dec("1")},
		{MemberID: memberA.ID, ItemID: fries.ID, Quantity: dec("1")},
	}

	result, err := Settle(receipt, claims, []Member{memberA, memberB})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	approxEqual(t, result.UnclaimedAmount, dec("3"), "unclaimed amount")
	if !result.OverclaimedAmount.IsZero() {
		t.Fatalf("expected zero overclaimed, got %s", result.OverclaimedAmount)
	}
	if len(result.Settlements) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(result.Settlements))
	}
	// Sorted by total owed descending, so Ana first.
	ana := result.Settlements[0]
	ben := result.Settlements[1]
	if ana.Member.ID != memberA.ID {
		t.Fatalf("expected Ana first, got %s", ana.Member.Name)
	}
	approxEqual(t, ana.Subtotal, dec("20"), "Ana subtotal")
	approxEqual(t, ana.TotalOwed, dec("28.70"), "Ana total owed")
	if len(ana.ClaimedItems) != 2 {
		t.Fatalf("expected 2 claimed items for Ana, got %d", len(ana.ClaimedItems))
	}
	if !ben.Subtotal.IsZero() || !ben.TaxShare.IsZero() || !ben.TipShare.IsZero() || !ben.TotalOwed.IsZero() {
		t.Fatalf("expected all-zero settlement for Ben, got %+v", ben)
	}
	if len(ben.ClaimedItems) != 0 {
		t.Fatalf("expected no claimed items for Ben")
	}
}

func TestSettlePartialQuantityItem(t *testing.T) {
	margarita := item("44444444-4444-4444-4444-444444444444", "Margarita", "56", "4")
	receipt := Receipt{
		Items:      []Item{margarita},
		Subtotal:   dec("56"),
		Tax:        dec("0"),
		Tip:        dec("0"),
		GrandTotal: dec("56"),
	}
	claims := []Claim{
		{MemberID: memberA.ID, ItemID: margarita.ID, Quantity: dec("1")},
		{MemberID: memberB.ID, ItemID: margarita.ID, Quantity: dec("2")},
	}

	result, err := Settle(receipt, claims, []Member{memberA, memberB})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// Sorted descending: Ben (28) before Ana (14).
	approxEqual(t, result.Settlements[0].Subtotal, dec("28"), "Ben subtotal")
	approxEqual(t, result.Settlements[1].Subtotal, dec("14"), "Ana subtotal")
	approxEqual(t, result.UnclaimedAmount, dec("14"), "unclaimed amount")
}

func TestSettleConservationFullyClaimed(t *testing.T) {
	pasta := item("11111111-1111-1111-1111-111111111111", "Pasta", "18.50", "1")
	wine := item("22222222-2222-2222-2222-222222222222", "Wine", "27.99", "3")
	receipt := Receipt{
		Items:      []Item{pasta, wine},
		Subtotal:   dec("46.49"),
		Tax:        dec("4.07"),
		Tip:        dec("9.30"),
		GrandTotal: dec("59.86"),
	}
	claims := []Claim{
		{MemberID: memberA.ID, ItemID: pasta.ID, Quantity: dec("1")},
		{MemberID: memberA.ID, ItemID: wine.ID, Quantity: dec("1")},
		{MemberID: memberB.ID, ItemID: wine.ID, Quantity: dec("2")},
	}

	result, err := Settle(receipt, claims, []Member{memberA, memberB})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	sum := decimal.Zero
	for _, s := range result.Settlements {
		sum = sum.Add(s.TotalOwed)
	}
	approxEqual(t, sum, receipt.GrandTotal, "sum of totals vs grand total")
	if !result.UnclaimedAmount.IsZero() || !result.OverclaimedAmount.IsZero() {
		t.Fatalf("expected zero reconciliation amounts, got unclaimed=%s overclaimed=%s",
			result.UnclaimedAmount, result.OverclaimedAmount)
	}
}

func TestSettleProportionalShares(t *testing.T) {
	dish := item("11111111-1111-1111-1111-111111111111", "Platter", "60", "6")
	receipt := Receipt{
		Items:      []Item{dish},
		Subtotal:   dec("60"),
		Tax:        dec("5.40"),
		Tip:        dec("12"),
		GrandTotal: dec("77.40"),
	}
	claims := []Claim{
		{MemberID: memberA.ID, ItemID: dish.ID, Quantity: dec("4")},
		{MemberID: memberB.ID, ItemID: dish.ID, Quantity: dec("2")},
	}

	result, err := Settle(receipt, claims, []Member{memberA, memberB})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	ana := result.Settlements[0]
	ben := result.Settlements[1]
	approxEqual(t, ana.TaxShare, ben.TaxShare.Mul(dec("2")), "tax proportionality")
	approxEqual(t, ana.TipShare, ben.TipShare.Mul(dec("2")), "tip proportionality")
}

func TestSettleOverclaimedItem(t *testing.T) {
	cake := item("11111111-1111-1111-1111-111111111111", "Cake", "12", "1")
	receipt := Receipt{
		Items:      []Item{cake},
		Subtotal:   dec("12"),
		Tax:        dec("0"),
		Tip:        dec("0"),
		GrandTotal: dec("12"),
	}
	// Both claim the whole cake: a normal transient state, not an error.
	claims := []Claim{
		{MemberID: memberA.ID, ItemID: cake.ID, Quantity: dec("1")},
		{MemberID: memberB.ID, ItemID: cake.ID, Quantity: dec("1")},
	}

	result, err := Settle(receipt, claims, []Member{memberA, memberB})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	approxEqual(t, result.OverclaimedAmount, dec("12"), "overclaimed amount")
	if !result.UnclaimedAmount.IsZero() {
		t.Fatalf("expected zero unclaimed, got %s", result.UnclaimedAmount)
	}
}

func TestSettleZeroSubtotalReceipt(t *testing.T) {
	freebie := item("11111111-1111-1111-1111-111111111111", "Sample", "0", "1")
	receipt := Receipt{
		Items:      []Item{freebie},
		Subtotal:   dec("0"),
		Tax:        dec("0"),
		Tip:        dec("0"),
		GrandTotal: dec("0"),
	}
	claims := []Claim{
		{MemberID: memberA.ID, ItemID: freebie.ID, Quantity: dec("1")},
	}

	result, err := Settle(receipt, claims, []Member{memberA, memberB})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !result.UnclaimedAmount.IsZero() || !result.OverclaimedAmount.IsZero() {
		t.Fatalf("expected zero reconciliation amounts for zero-subtotal receipt")
	}
	for _, s := range result.Settlements {
		if !s.TotalOwed.IsZero() {
			t.Fatalf("expected zero total for %s, got %s", s.Member.Name, s.TotalOwed)
		}
	}
}

func TestSettleIdempotent(t *testing.T) {
	dish := item("11111111-1111-1111-1111-111111111111", "Ramen", "13.75", "1")
	receipt := Receipt{
		Items:      []Item{dish},
		Subtotal:   dec("13.75"),
		Tax:        dec("1.20"),
		Tip:        dec("2.50"),
		GrandTotal: dec("17.45"),
	}
	claims := []Claim{{MemberID: memberA.ID, ItemID: dish.ID, Quantity: dec("1")}}
	members := []Member{memberA, memberB}

	first, err := Settle(receipt, claims, members)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	second, err := Settle(receipt, claims, members)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	for i := range first.Settlements {
		if !first.Settlements[i].TotalOwed.Equal(second.Settlements[i].TotalOwed) {
			t.Fatalf("expected identical output on identical input")
		}
	}
}

func TestSettleTiesKeepMemberOrder(t *testing.T) {
	dish := item("11111111-1111-1111-1111-111111111111", "Mezze", "30", "3")
	receipt := Receipt{
		Items:      []Item{dish},
		Subtotal:   dec("30"),
		Tax:        dec("0"),
		Tip:        dec("0"),
		GrandTotal: dec("30"),
	}
	claims := []Claim{
		{MemberID: memberC.ID, ItemID: dish.ID, Quantity: dec("1")},
		{MemberID: memberA.ID, ItemID: dish.ID, Quantity: dec("1")},
		{MemberID: memberB.ID, ItemID: dish.ID, Quantity: dec("1")},
	}

	result, err := Settle(receipt, claims, []Member{memberA, memberB, memberC})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	order := []uuid.UUID{memberA.ID, memberB.ID, memberC.ID}
	for i, s := range result.Settlements {
		if s.Member.ID != order[i] {
			t.Fatalf("expected member order preserved on ties, got %s at %d", s.Member.Name, i)
		}
	}
}

func TestSettleDropsClaimsOnUnknownItems(t *testing.T) {
	dish := item("11111111-1111-1111-1111-111111111111", "Tacos", "9", "1")
	receipt := Receipt{
		Items:      []Item{dish},
		Subtotal:   dec("9"),
		Tax:        dec("0"),
		Tip:        dec("0"),
		GrandTotal: dec("9"),
	}
	claims := []Claim{
		{MemberID: memberA.ID, ItemID: dish.ID, Quantity: dec("1")},
		{MemberID: memberA.ID, ItemID: uuid.MustParse("99999999-9999-9999-9999-999999999999"), Quantity: dec("1")},
	}

	result, err := Settle(receipt, claims, []Member{memberA})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	approxEqual(t, result.Settlements[0].Subtotal, dec("9"), "subtotal ignores stale claim")
}

func TestSettleContractViolations(t *testing.T) {
	good := item("11111111-1111-1111-1111-111111111111", "Soup", "6", "1")

	tests := []struct {
		name    string
		receipt Receipt
		claims  []Claim
		wantErr error
	}{
		{
			name: "negative claim quantity",
			receipt: Receipt{
				Items: []Item{good}, Subtotal: dec("6"),
			},
			claims:  []Claim{{MemberID: memberA.ID, ItemID: good.ID, Quantity: dec("-1")}},
			wantErr: ErrNegativeClaimQuantity,
		},
		{
			name: "negative item price",
			receipt: Receipt{
				Items:    []Item{{ID: good.ID, Label: "Bad", Price: dec("-5"), Quantity: dec("1")}},
				Subtotal: dec("6"),
			},
			wantErr: ErrNegativeItemPrice,
		},
		{
			name: "zero item quantity",
			receipt: Receipt{
				Items:    []Item{{ID: good.ID, Label: "Bad", Price: dec("5"), Quantity: dec("0")}},
				Subtotal: dec("6"),
			},
			wantErr: ErrItemQuantityNotPositive,
		},
		{
			name:    "negative subtotal",
			receipt: Receipt{Items: []Item{good}, Subtotal: dec("-1")},
			wantErr: ErrNegativeReceiptAmount,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Settle(tc.receipt, tc.claims, []Member{memberA})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}
