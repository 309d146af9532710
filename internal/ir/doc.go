// Package ir provides the foundational value and error types shared by the
// sooq query pipeline.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Literal values are a closed set of kinds (Null, Bool, Int, Float,
//     String, Time, Guid); every literal that reaches SQL generation is one
//     of them
//   - Strings are NFC-normalized on entry so safety checks and bound
//     parameters see the same text
//   - Every translation and execution failure is an *Error carrying one of
//     the ErrorCode constants
package ir
