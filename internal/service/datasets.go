package service

import (
	"fmt"
	"regexp"
	"strings"

	"infradesk/internal/domain"
)

// DatasetExt is the blob extension of a dataset file.
const DatasetExt = ".csv"

var datasetNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateDatasetName rejects names that cannot safely back a blob.
func ValidateDatasetName(name string) error {
	if !datasetNameRe.MatchString(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidDataset, name)
	}
	return nil
}

// BlobName maps a dataset to its blob name.
func BlobName(dataset string) (string, error) {
	if err := ValidateDatasetName(dataset); err != nil {
		return "", err
	}
	return dataset + DatasetExt, nil
}

// DatasetFromBlob is the inverse of BlobName. ok is false for blobs that
// are not dataset files.
func DatasetFromBlob(blob string) (string, bool) {
	name, found := strings.CutSuffix(blob, DatasetExt)
	if !found || ValidateDatasetName(name) != nil {
		return "", false
	}
	return name, true
}
