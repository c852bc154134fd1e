// Package tether binds an in-memory tree of maps, slices, and scalars to
// a durable file: load a file once, mutate the tree through its handles,
// and every mutation is persisted back to disk without explicit save
// calls. It targets configuration-style workloads where many small,
// scattered mutations should survive process restarts with minimal
// ceremony.
//
// # Documents and Nodes
//
// A Document pairs a tree with a destination path and format. Its tree is
// reached through Node handles, which route every write through the
// document's change observation:
//
//	doc, err := tether.Load(ctx, "settings.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer doc.Close(ctx)
//
//	root := doc.Root()
//	root.Set("theme", "dark")          // persisted automatically
//	server, _ := root.Child("server")
//	server.Set("port", 8080)           // nested mutations persist too
//
// Observation is deep and lazy: a container assigned into the tree is
// observable the moment it lands, with no extra call —
//
//	root.Set("nested", map[string]any{"x": 1})
//	nested, _ := root.Child("nested")
//	nested.Set("x", 2)                 // triggers its own save
//
// With WithShallow only root-level mutations notify; nested container
// internals are opaque. With WithReactive(false) nothing auto-saves and
// only explicit Save/SaveNow calls write.
//
// # Save policy
//
// Saves serialize the whole current tree and replace the file contents;
// there is no diffing or partial writing. The default policy is
// non-blocking: writes run on a per-document writer that serializes all
// writes to the path, coalesces bursts, and guarantees the last completed
// write reflects the latest tree. Failures surface through Errors,
// LastError, ErrorHistory, the degraded state, and the
// DocumentSaveFailed signal — never silently.
//
// With WithBlockingSave the triggering mutation waits for the write and
// receives its error directly:
//
//	doc, _ := tether.Load(ctx, "settings.json", tether.WithBlockingSave())
//	if err := doc.Root().Set("count", 1); err != nil {
//	    log.Printf("save failed: %v", err)
//	}
//
// WithDebounce coalesces rapid mutations into a single write, and the
// WithSave* options wrap the write with retry, backoff, timeout, and
// error-handler middleware.
//
// # Formats
//
// Formats are resolved through a process-wide codec registry, keyed by
// the identifier inferred from the file extension. JSON, YAML, TOML, and
// XML are built in; registering another format is one call:
//
//	tether.RegisterCodec("hcl", hclCodec{})
//
// # States
//
// A document is in one of three states:
//
//   - Clean: the bound file reflects the last observed tree
//   - Dirty: mutations observed but not yet durable
//   - Degraded: the last save failed; the tree remains authoritative
//
// State transitions, loads, saves, and observed changes emit capitan
// signals for observability integration.
package tether
