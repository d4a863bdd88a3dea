package licensing

import (
	"time"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
)

// ReceiptTerms is the immutable snapshot of the purchased terms embedded in a
// receipt. Receipts must stay verifiable even after the owner replaces the
// site's terms, so the snapshot carries everything a verifier needs.
type ReceiptTerms struct {
	ID             string   `json:"id"`
	AllowedActions []string `json:"allowedActions"`
	PriceModel     string   `json:"priceModel"`
	PricePerUnit   string   `json:"pricePerUnit"`
	PriceToken     string   `json:"priceToken"`
	TermsURI       string   `json:"termsUri,omitempty"`
}

// Receipt is the signed record proving a license was issued by this server
// under specific terms. Its canonical JSON form is the exact byte sequence
// signed; field order in this struct is irrelevant to the signature.
type Receipt struct {
	LicenseID  string       `json:"licenseId"`
	AssetID    string       `json:"assetId"`
	SiteDomain string       `json:"siteDomain"`
	Buyer      string       `json:"buyer"`
	Issuer     string       `json:"issuer"`
	Terms      ReceiptTerms `json:"terms"`
	IssuedAt   string       `json:"issuedAt"`
	ExpiresAt  string       `json:"expiresAt,omitempty"`
}

func buildReceipt(license *models.License, site *models.Site, terms *models.LicenseTerms, issuer string, issuedAt time.Time) Receipt {
	receipt := Receipt{
		LicenseID:  license.ID.String(),
		AssetID:    site.AssetIdentifier(),
		SiteDomain: site.Domain,
		Buyer:      license.BuyerAddress,
		Issuer:     issuer,
		Terms: ReceiptTerms{
			ID:             terms.ID.String(),
			AllowedActions: append([]string(nil), terms.AllowedActions...),
			PriceModel:     terms.PriceModel.String(),
			PricePerUnit:   terms.PricePerUnit.String(),
			PriceToken:     terms.PriceToken,
		},
		IssuedAt: issuedAt.UTC().Format(time.RFC3339),
	}
	if terms.TermsURI != nil {
		receipt.Terms.TermsURI = *terms.TermsURI
	}
	if license.ExpiresAt != nil {
		receipt.ExpiresAt = license.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return receipt
}
