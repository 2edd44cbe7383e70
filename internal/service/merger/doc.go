// Package merger moves an extracted build folder over an existing installation.
//
// Child files of the source replace same-named destination entries, child
// directories replace same-named destination subtrees wholesale, and the empty
// source folder is removed afterwards. The running updater binary is swapped
// through go-update since it cannot be deleted while it runs on Windows.
package merger
