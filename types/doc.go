// Package types provides core types shared across the daneel framework.
// This package has ZERO dependencies on other daneel packages to avoid
// circular imports. All other packages should import types from here.
package types
