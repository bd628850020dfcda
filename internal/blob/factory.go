package blob

import (
	"context"
	"fmt"
)

// Open selects a store backend by driver name. An empty name means the
// filesystem driver.
//
//	fs:     root is the snapshot directory (LH_BLOB_FS_ROOT)
//	s3:     bucket and endpoint come from LH_BLOB_S3_* variables
//	memory: ephemeral, for tests
func Open(ctx context.Context, driver, root string) (Store, error) {
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(root)
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
