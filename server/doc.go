// Package server holds the chat core: the in-memory model, the
// controller and view that operate on it, and the frame-dispatching
// server that ties them to the wire.
//
// Every touch of the model is funneled through one serial task queue.
// Connection handling, relay pulls and relay pushes are all tasks on
// that queue, so the model needs no locks and mutations observe a
// strict total order. A slow task stalls the queue; that trade is
// accepted for the simplicity of the single-writer discipline.
package server
