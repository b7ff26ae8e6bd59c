package tinyterm

// Version returns a user-readable string showing the version
// of the TinyTerm package for support purposes.
//
// Update this value before release of new version of software.
const Version = "0.5.0"
