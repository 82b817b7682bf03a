package utils

import "sync"

var gdalMu sync.Mutex

// ExecuteWithMutex runs fn while holding the process wide GDAL lock.
func ExecuteWithMutex(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}
