// Package config defines the format-agnostic model of a frame graph file and
// the Loader interface that produces it.
//
// The `config.Model` is what the builder turns into passes and handles.
// Concrete loaders, such as the HCL one, live in separate packages.
package config
