package memory

import (
	"testing"

	"github.com/marmos91/dittovault/pkg/store/metadata"
	metatesting "github.com/marmos91/dittovault/pkg/store/metadata/testing"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &metatesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Index {
			return NewMemoryMetadataStore()
		},
	}
	suite.Run(t)
}
