package storage

import (
	"os"
)

// fileSizes returns the combined size of the database file and its WAL
// companions. Missing files count as zero.
func fileSizes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}

func sqliteFiles(dbPath string) []string {
	if dbPath == "" || dbPath == memoryDSN {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}
