package assetgraph

import (
	"fmt"
	"time"
)

// Kind discriminates the node union stored in the graph.
type Kind int

const (
	// KindDependency is a reference from one module to another, pending
	// resolution to a concrete file.
	KindDependency Kind = iota
	// KindRequest identifies a file (plus environment) to be transformed.
	KindRequest
	// KindAsset is the transformed output of a request.
	KindAsset
)

// String returns the lowercase name of the kind, for logs and errors.
func (k Kind) String() string {
	switch k {
	case KindDependency:
		return "dependency"
	case KindRequest:
		return "request"
	case KindAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// Environment describes the execution context a node is built for.
type Environment struct {
	// Context is the target runtime, e.g. "browser" or "node".
	Context string
}

// Dependency is a reference from one module to another. SourcePath is the
// importing file and is empty for build entries.
type Dependency struct {
	ID         string
	Specifier  string
	SourcePath string
	Env        Environment
	// Optional marks the dependency as tolerant of resolution failure.
	Optional bool
}

// Request is a unit of transform work: a file path plus environment.
// Code optionally carries inline source for synthetic requests (runtime
// injection) that have no backing file on disk.
type Request struct {
	ID       string
	FilePath string
	Env      Environment
	Code     string
}

// Asset is the produced output of a transformed request.
type Asset struct {
	ID       string
	FilePath string
	Env      Environment
	Code     string
	Meta     map[string]string
	// Duration is the wall-clock time the transform took.
	Duration time.Duration
}

// Node is the tagged union stored in the graph. Exactly one of the three
// payload pointers is non-nil, matching Kind.
type Node struct {
	ID         string
	Kind       Kind
	Dependency *Dependency
	Request    *Request
	Asset      *Asset
}

// DependencyDescriptor is a dependency discovered by a transform, before it
// becomes a graph node. A nil Env inherits the parent asset's environment.
type DependencyDescriptor struct {
	Specifier string
	Optional  bool
	Env       *Environment
}

// GeneratedAsset is one asset produced by a transformer run.
type GeneratedAsset struct {
	Code string
	Meta map[string]string
	Deps []DependencyDescriptor
}

// TransformResult is everything a transformer reports for one request:
// the produced assets and the build-input files it started or stopped
// reading while producing them.
type TransformResult struct {
	Assets       []GeneratedAsset
	AddedFiles   []string
	RemovedFiles []string
}

// DependencyID derives the stable node ID for a dependency edge source.
func DependencyID(sourcePath, specifier string, env Environment) string {
	return fmt.Sprintf("dep:%s:%s:%s", sourcePath, specifier, env.Context)
}

// RequestID derives the stable node ID for a transform request.
func RequestID(filePath string, env Environment) string {
	return fmt.Sprintf("req:%s:%s", filePath, env.Context)
}

// AssetID derives the stable node ID for the nth asset of a request.
func AssetID(filePath string, env Environment, index int) string {
	return fmt.Sprintf("asset:%s:%s:%d", filePath, env.Context, index)
}
