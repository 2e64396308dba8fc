// Package fname contains filename and directory-layout constants.
/*
 * Copyright (c) 2018-2022, NVIDIA CORPORATION. All rights reserved.
 */
package fname

const (
	// DefaultDir is used when --dir is not given.
	DefaultDir = "."
	// DefaultDBFilename is the snapshot file basename loaded at startup,
	// per §6's "Snapshot file" external interface.
	DefaultDBFilename = "dump.rdb"
)
