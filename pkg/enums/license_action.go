package enums

import "fmt"

// LicenseAction tags a usage right granted by license terms.
type LicenseAction string

const (
	LicenseActionScrape  LicenseAction = "SCRAPE"
	LicenseActionTrain   LicenseAction = "TRAIN"
	LicenseActionIndex   LicenseAction = "INDEX"
	LicenseActionArchive LicenseAction = "ARCHIVE"
)

var validLicenseActions = []LicenseAction{
	LicenseActionScrape,
	LicenseActionTrain,
	LicenseActionIndex,
	LicenseActionArchive,
}

// String implements fmt.Stringer.
func (a LicenseAction) String() string {
	return string(a)
}

// IsValid reports whether the value matches a known action tag.
func (a LicenseAction) IsValid() bool {
	for _, candidate := range validLicenseActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseLicenseAction converts raw input into LicenseAction.
func ParseLicenseAction(value string) (LicenseAction, error) {
	for _, candidate := range validLicenseActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license action %q", value)
}
