/*Package interval implements genomic intervals and a per-chromosome interval
  tree optimized for overlap lookup against gene and exon models.
  (Note that, unlike an interval-union, overlapping intervals are tracked
  separately; identical intervals share one tree node and keep all of their
  payloads.)
  Intervals are half-open and 0-based ("interbase") internally; the 1-based
  inclusive "tabix" form is only produced or parsed at external boundaries.
  Every position is assumed to fit in a PosType, which is currently defined
  as int32 since that's what BAM files are limited to.
*/
package interval
