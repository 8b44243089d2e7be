// Package persistence implements the versioned model serialization protocol.
//
// A fitted model is written as a primary JSON record plus zero or more
// sidecar .npy array files. The record is a recursive structure: every
// serializable entity becomes a dictionary with exactly five keys
//
//	{version, class_name, module_name, init_params, data}
//
// where init_params holds everything needed to reconstruct configuration and
// data holds derived numeric state. Nested entities become nested records,
// lists of entities element-wise.
//
// Numeric arrays above a size threshold (50 MB by default) are externalized
// to sidecar files named <base>-<class>[-<tag>]-<field>.npy next to the
// record and referenced by relative filename; smaller arrays are embedded
// inline as a tagged ["npy", nested-list] pair so a small model stays a
// single text file. On load, sidecars are reopened memory-mapped read-only.
//
// Entities are registered against a (module_name, class_name) identifier via
// Register; no base type is required beyond the Entity capability interface.
//
// The working directory for sidecar resolution is always derived from the
// record path passed in by the caller — there is no ambient global state, so
// concurrent save/load sessions in one process do not interfere.
package persistence
