// Package cabal implements a language-agnostic package dependency
// resolver: given a catalogue of installed and source packages, a set
// of user targets, constraints and preferences, it computes a
// consistent install plan or explains why none exists.
//
// The solver walks a lazy search tree of choice points (package
// versions, flag values, stanza inclusions) depth-first, validating
// every partial assignment as it goes. Failures carry conflict sets;
// conflict-driven backjumping prunes whole subtrees whose decisions
// were irrelevant to an observed failure. Qualified namespaces keep
// setup scripts, build tools and independent targets apart while a
// linking discipline lets equal decisions in different namespaces share
// one build artifact.
//
// The core is single-threaded and pure: all inputs are frozen at
// Prepare, no I/O happens during the walk, and identical inputs produce
// byte-identical outputs, including the trace log. Reading package
// descriptions, fetching archives and executing builds are the caller's
// problem; the solver sees only the in-memory Index and SolveParameters
// and produces a Solution, a failure with a narrative, or a budget
// exhaustion.
package cabal
