package parse

import "testing"

func mustParse(t *testing.T, page string) *Product {
	t.Helper()
	p, err := ProductPage([]byte(page))
	if err != nil {
		t.Fatalf("ProductPage failed: %v", err)
	}
	return p
}

func TestMatchesFormat_Label(t *testing.T) {
	p := mustParse(t, `<html><body>
	  <span id="productTitle">Some Book</span>
	  <span id="productBinding">Hardcover</span>
	</body></html>`)

	if !p.MatchesFormat("hardcover") {
		t.Error("expected format label to match")
	}
	if p.MatchesFormat("paperback") {
		t.Error("wrong label should not match without other signals")
	}
}

func TestMatchesFormat_ISBNSignal(t *testing.T) {
	// No binding label anywhere, but ISBN identifies a physical edition
	p := mustParse(t, `<html><body>
	  <div id="detailBullets_feature_div">ISBN-13 : 978-0134190440</div>
	</body></html>`)

	ok, signals := p.FormatSignals("hardcover")
	if !ok {
		t.Fatal("expected ISBN signal to pass the format check")
	}
	if len(signals) != 1 || signals[0] != "isbn" {
		t.Errorf("signals: got %v", signals)
	}
}

func TestMatchesFormat_DimensionsSignal(t *testing.T) {
	p := mustParse(t, `<html><body>
	  <div id="detailBullets_feature_div">Dimensions : 6 x 1.2 x 9 inches</div>
	</body></html>`)

	ok, signals := p.FormatSignals("hardcover")
	if !ok {
		t.Fatal("expected dimensions signal to pass the format check")
	}
	if len(signals) != 1 || signals[0] != "dimensions" {
		t.Errorf("signals: got %v", signals)
	}
}

func TestMatchesFormat_NoSignals(t *testing.T) {
	p := mustParse(t, `<html><body>
	  <span id="productTitle">Kindle Edition Thing</span>
	  <div id="detailBullets_feature_div">File Size : 3456 KB</div>
	</body></html>`)

	if p.MatchesFormat("hardcover") {
		t.Error("page with no physical-edition signals should fail the check")
	}
}

func TestMatchesFormat_EmptyRequired(t *testing.T) {
	p := mustParse(t, `<html><body><span id="productTitle">Anything</span></body></html>`)

	if !p.MatchesFormat("") {
		t.Error("empty required format disables the check")
	}
}

func TestFormatSignals_AllThree(t *testing.T) {
	p := mustParse(t, `<html><body>
	  <span id="productBinding">Hardcover</span>
	  <div id="detailBullets_feature_div">
	    ISBN-10 : 0134190440 Dimensions : 7.38 x 0.9 x 9.12 inches
	  </div>
	</body></html>`)

	ok, signals := p.FormatSignals("Hardcover")
	if !ok || len(signals) != 3 {
		t.Errorf("got ok=%v signals=%v, want all three", ok, signals)
	}
}
